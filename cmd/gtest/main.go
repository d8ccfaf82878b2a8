package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/ilc/pkg/casefile"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

type CaseResult struct {
	File    string     `json:"file"`
	Name    string     `json:"name"`
	Hash    string     `json:"hash"`
	Status  string     `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string     `json:"message,omitempty"`
	Diff    string     `json:"diff,omitempty"`
	Compile *Execution `json:"compile,omitempty"`
	Run     *Execution `json:"run,omitempty"`
}

type TestSuiteResults map[string]*CaseResult

var (
	targetCompiler = flag.String("target-compiler", "./ilc", "Path to the compiler to test.")
	targetArgs     = flag.String("target-args", "", "Extra arguments for the compiler (space-separated).")
	testFiles      = flag.String("test-files", "pkg/codegen/testdata/*.md", "Glob pattern(s) for Markdown case files (space-separated).")
	skipCases      = flag.String("skip", "", "Case names to skip (comma-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	useCache       = flag.Bool("cached", false, "Skip cases that passed in the previous run with the same compiler binary.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

type task struct {
	file string
	hash string
	c    casefile.Case
}

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "gtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if _, err := os.Stat(*targetCompiler); err != nil {
		if _, err := exec.LookPath(*targetCompiler); err != nil {
			log.Fatalf("%s[ERROR]%s Compiler '%s' not found\n", cRed, cNone, *targetCompiler)
		}
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	compilerHash, err := hashFile(*targetCompiler)
	if err != nil {
		if *useCache {
			log.Printf("%s[WARN]%s Could not hash compiler '%s', cache disabled: %v\n", cYellow, cNone, *targetCompiler, err)
		}
	}

	previousResults := make(TestSuiteResults)
	if prevData, err := os.ReadFile(*outputJSON); err == nil {
		if json.Unmarshal(prevData, &previousResults) != nil {
			log.Printf("%s[WARN]%s Could not parse previous results file %s. Cache will not be used.\n", cYellow, cNone, *outputJSON)
			previousResults = make(TestSuiteResults)
		}
	}

	skipList := make(map[string]bool)
	for _, name := range strings.Split(*skipCases, ",") {
		if name = strings.TrimSpace(name); name != "" {
			skipList[name] = true
		}
	}

	var all []task
	var results []*CaseResult
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			results = append(results, &CaseResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read file: %v", err)})
			continue
		}
		cases, err := casefile.Extract(src)
		if err != nil {
			results = append(results, &CaseResult{File: file, Status: "ERROR", Message: err.Error()})
			continue
		}
		for _, c := range cases {
			all = append(all, task{file: file, c: c})
		}
	}

	tasks := make(chan task, len(all))
	resultsChan := make(chan *CaseResult, len(all))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				resultsChan <- testCase(t, tempDir)
			}
		}()
	}

	seenHashes := make(map[string]string)
	for _, t := range all {
		hash := caseHash(t.c, compilerHash)
		t.hash = hash
		key := resultKey(t.file, t.c.Name)
		switch {
		case skipList[t.c.Name]:
			resultsChan <- &CaseResult{File: t.file, Name: t.c.Name, Hash: hash, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		case seenHashes[hash] != "":
			resultsChan <- &CaseResult{File: t.file, Name: t.c.Name, Hash: hash, Status: "SKIP", Message: fmt.Sprintf("Identical to %s", seenHashes[hash])}
			continue
		}
		seenHashes[hash] = key
		if prev, ok := previousResults[key]; *useCache && compilerHash != "" && ok && prev.Hash == hash && prev.Status == "PASS" {
			cached := *prev
			cached.Message = "Passed in the previous run (cached)"
			resultsChan <- &cached
			continue
		}
		tasks <- t
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	for result := range resultsChan {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].File != results[j].File {
			return results[i].File < results[j].File
		}
		return results[i].Name < results[j].Name
	})

	printSummary(results)
	writeJSONReport(results)

	if hasFailures(results) {
		os.Exit(1)
	}
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

// caseHash identifies a case's inputs and expectations together with the
// compiler binary that produced the result.
func caseHash(c casefile.Case, compilerHash string) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%x\x00%s\x00%s\x00%s\x00%s\x00%s",
		c.Hash(), compilerHash, *targetArgs, strings.Join(c.Asm, "\n"), c.CompileError, c.Output)
	return fmt.Sprintf("%x", h.Sum64())
}

func resultKey(file, name string) string { return file + "#" + name }

func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func testCase(t task, tempDir string) *CaseResult {
	c := t.c
	result := &CaseResult{File: t.file, Name: c.Name, Hash: t.hash}

	base := filepath.Join(tempDir, fmt.Sprintf("%x", c.Hash()))
	treeFile := base + ".json"
	if err := os.WriteFile(treeFile, []byte(c.Tree), 0644); err != nil {
		result.Status, result.Message = "ERROR", fmt.Sprintf("Could not write tree: %v", err)
		return result
	}
	if *verbose {
		log.Printf("[%s] compiling %s", c.Name, treeFile)
	}

	var diffs strings.Builder

	if len(c.Asm) > 0 || c.CompileError != "" {
		asmFile := base + ".s"
		compile := runCompiler(treeFile, "-S", "-o", asmFile)
		result.Compile = &compile
		if c.CompileError != "" {
			return checkCompileError(result, c, compile)
		}
		if compile.ExitCode != 0 || compile.TimedOut {
			result.Status, result.Message = "FAIL", "Compiler failed to produce assembly"
			result.Diff = "Compiler STDERR:\n" + compile.Stderr
			return result
		}
		asm, err := os.ReadFile(asmFile)
		if err != nil {
			result.Status, result.Message = "ERROR", fmt.Sprintf("Could not read assembly: %v", err)
			return result
		}
		if line, missing := missingLine(string(asm), c.Asm); missing {
			fmt.Fprintf(&diffs, "Assembly line %q not found in order.\n", line)
		}
	}

	if c.HasOutput {
		binary := base + ".bin"
		compile := runCompiler(treeFile, "-o", binary)
		result.Compile = &compile
		if compile.ExitCode != 0 || compile.TimedOut {
			result.Status, result.Message = "FAIL", "Compiler failed, but the case expects output"
			result.Diff = "Compiler STDERR:\n" + compile.Stderr
			return result
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		run := executeCommand(ctx, binary, c.Input)
		cancel()
		result.Run = &run

		switch {
		case run.TimedOut:
			fmt.Fprintf(&diffs, "Program timed out after %s.\n", *timeout)
		case run.ExitCode != 0:
			fmt.Fprintf(&diffs, "Program exited with code %d.\n", run.ExitCode)
		}
		if run.Stdout != c.Output {
			fmt.Fprintf(&diffs, "STDOUT mismatch:\n%s", cmp.Diff(c.Output, run.Stdout))
		}
	}

	if diffs.Len() > 0 {
		result.Status, result.Message, result.Diff = "FAIL", "Generated code does not match the case", diffs.String()
		return result
	}
	result.Status, result.Message = "PASS", "All assertions passed"
	return result
}

func runCompiler(treeFile string, args ...string) Execution {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	allArgs := append([]string{"-q"}, args...)
	allArgs = append(allArgs, strings.Fields(*targetArgs)...)
	allArgs = append(allArgs, treeFile)
	return executeCommand(ctx, *targetCompiler, "", allArgs...)
}

// checkCompileError expects a failed compile whose diagnostic names the
// line and message of want, which reads "line N: message".
func checkCompileError(result *CaseResult, c casefile.Case, compile Execution) *CaseResult {
	if compile.ExitCode == 0 {
		result.Status, result.Message = "FAIL", "Compiler succeeded, but the case expects an error"
		return result
	}
	line, msg := splitCompileError(c.CompileError)
	if !strings.Contains(compile.Stderr, msg) || (line > 0 && !strings.Contains(compile.Stderr, fmt.Sprintf(":%d: ", line))) {
		result.Status, result.Message = "FAIL", "Compiler failed with a different error"
		result.Diff = cmp.Diff(c.CompileError, strings.TrimSpace(compile.Stderr))
		return result
	}
	result.Status, result.Message = "PASS", "Compiler failed as expected"
	return result
}

func splitCompileError(want string) (int, string) {
	rest, ok := strings.CutPrefix(want, "line ")
	if !ok {
		return 0, want
	}
	num, msg, ok := strings.Cut(rest, ": ")
	if !ok {
		return 0, want
	}
	line, err := strconv.Atoi(num)
	if err != nil {
		return 0, want
	}
	return line, msg
}

// missingLine returns the first expected line that does not occur, as a
// whole trimmed line, after the previously matched one.
func missingLine(asm string, want []string) (string, bool) {
	lines := strings.Split(asm, "\n")
	pos := 0
	for _, w := range want {
		found := false
		for ; pos < len(lines); pos++ {
			if strings.TrimSpace(lines[pos]) == w {
				found = true
				pos++
				break
			}
		}
		if !found {
			return w, true
		}
	}
	return "", false
}

// executeCommand runs a command with a timeout and captures its output, optionally piping data to stdin
func executeCommand(ctx context.Context, command string, stdinData string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdinData != "" {
		cmd.Stdin = strings.NewReader(stdinData)
	}

	err := cmd.Run()
	execResult := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	if ctx.Err() == context.DeadlineExceeded {
		execResult.TimedOut = true
		execResult.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			execResult.ExitCode = exitErr.ExitCode()
		} else {
			execResult.ExitCode = -2
			execResult.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return execResult
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*CaseResult) {
	var passed, failed, skipped, errored int
	var totalCompile, totalRun time.Duration

	lastFile := ""
	for _, result := range results {
		if result.File != lastFile {
			fmt.Println("----------------------------------------------------------------------")
			fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)
			lastFile = result.File
		}

		name := result.Name
		if name == "" {
			name = "(file)"
		}
		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s: %s\n", cGreen, cNone, name, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s: %s\n", cRed, cNone, name, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s: %s\n", cYellow, cNone, name, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s: %s\n", cRed, cNone, name, result.Message)
		}

		if result.Compile != nil {
			totalCompile += result.Compile.Duration
		}
		if result.Run != nil {
			totalRun += result.Run.Duration
		}
		if *verbose && result.Status == "PASS" && result.Compile != nil {
			line := fmt.Sprintf("         compile: %s", formatDuration(result.Compile.Duration))
			if result.Run != nil {
				line += fmt.Sprintf(" | run: %s", formatDuration(result.Run.Duration))
			}
			fmt.Println(line)
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))
	if totalCompile > 0 {
		fmt.Printf("Time spent compiling: %s, running: %s\n", totalCompile.Round(time.Millisecond), totalRun.Round(time.Millisecond))
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*CaseResult) {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[resultKey(r.File, r.Name)] = r
	}
	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return
	}
	if err := os.WriteFile(*outputJSON, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, *outputJSON, err)
		return
	}
	fmt.Printf("Full test report saved to %s\n", *outputJSON)
}

func hasFailures(results []*CaseResult) bool {
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			return true
		}
	}
	return false
}
