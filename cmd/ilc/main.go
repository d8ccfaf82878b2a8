package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/goforj/godump"
	"github.com/xplshn/ilc/pkg/ast"
	"github.com/xplshn/ilc/pkg/binder"
	"github.com/xplshn/ilc/pkg/cli"
	"github.com/xplshn/ilc/pkg/codegen"
	"github.com/xplshn/ilc/pkg/config"
	ilcrt "github.com/xplshn/ilc/pkg/runtime"
	"github.com/xplshn/ilc/pkg/token"
	"github.com/xplshn/ilc/pkg/util"
)

func main() {
	app := cli.NewApp("ilc")
	app.Synopsis = "[options] <tree.json>"
	app.Description = "Checks names in a parsed program tree, lays out its stack frame and emits x86_64 assembly (or QBE IL), then assembles and links it with the C library."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/ilc>"

	var (
		outFile    string
		sourceFile string
		backend    string
		target     string
		linkerArgs []string
		asmOnly    bool
		dumpIR     bool
		dumpUnit   bool
		quiet      bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "a.out", "Place the output into <file>.", "file")
	fs.String(&sourceFile, "source", "s", "", "Source file the tree was parsed from, quoted in diagnostics.", "file")
	fs.String(&backend, "backend", "b", config.BackendX86, "Code generator: x86_64 or qbe.", "backend")
	fs.String(&target, "target", "t", "", "QBE target (amd64_sysv, arm64, rv64, ...).", "target")
	fs.List(&linkerArgs, "linker-arg", "L", []string{}, "Pass an argument to the linker.", "arg")
	fs.Bool(&asmOnly, "asm", "S", false, "Write assembly to the output file instead of linking.")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Print the backend's output and exit.")
	fs.Bool(&dumpUnit, "dump-unit", "u", false, "Print the slots, arrays and frame assigned by the binder.")
	fs.Bool(&quiet, "quiet", "q", false, "Do not print progress messages.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputs []string) error {
		if len(inputs) != 1 {
			util.Error(token.Token{FileIndex: -1}, "expected exactly one input tree, got %d", len(inputs))
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, backend, target); err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}
		cfg.LinkerArgs = append(cfg.LinkerArgs, linkerArgs...)

		progress := func(format string, args ...interface{}) {
			if !quiet {
				fmt.Printf(format, args...)
			}
		}

		progress("----------------------\n")
		progress("Reading tree from '%s'...\n", inputs[0])
		root := readTree(inputs[0], sourceFile)

		progress("Binding names...\n")
		unit, err := binder.NewBinder(cfg).Bind(root)
		if err != nil {
			reportBindError(os.Stderr, err, inputs[0], sourceFile)
			os.Exit(1)
		}

		if dumpUnit {
			godump.Dump(describeUnit(unit))
		}

		be, err := codegen.SelectBackend(cfg.BackendName)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}

		if dumpIR {
			progress("Dumping output of '%s' backend...\n", cfg.BackendName)
			text, err := be.GenerateIR(unit, cfg)
			if err != nil {
				util.Error(token.Token{FileIndex: -1}, "backend IR generation failed: %v", err)
			}
			fmt.Print(text)
			return nil
		}

		progress("Generating code with '%s' backend...\n", cfg.BackendName)
		asm, err := be.Generate(unit, cfg)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "backend code generation failed: %v", err)
		}

		if asmOnly {
			progress("Writing assembly to '%s'...\n", outFile)
			if err := os.WriteFile(outFile, asm.Bytes(), 0644); err != nil {
				util.Error(token.Token{FileIndex: -1}, "could not write '%s': %v", outFile, err)
			}
		} else {
			progress("Linking to create '%s'...\n", outFile)
			withRuntime := cfg.BackendName == config.BackendX86
			if err := assembleAndLink(outFile, asm.String(), withRuntime, cfg.LinkerArgs); err != nil {
				util.Error(token.Token{FileIndex: -1}, "assembler/linker failed: %v", err)
			}
		}

		progress("----------------------\n")
		progress("Done!\n")
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// readTree decodes the tree and registers the source file, when there is
// one, so token positions can be rendered with their line.
func readTree(path, sourceFile string) *ast.Node {
	f, err := os.Open(path)
	if err != nil {
		util.Error(token.Token{FileIndex: -1}, "could not read file '%s': %v", path, err)
	}
	defer f.Close()

	fileIndex := -1
	if sourceFile != "" {
		if content, err := os.ReadFile(sourceFile); err == nil {
			util.SetSourceFiles([]util.SourceFileRecord{{Name: sourceFile, Content: []rune(string(content))}})
			fileIndex = 0
		} else {
			fmt.Fprintf(os.Stderr, "ilc: info: cannot read source file '%s', diagnostics will not quote it\n", sourceFile)
		}
	}

	root, err := ast.Decode(f, fileIndex)
	if err != nil {
		util.Error(token.Token{FileIndex: -1}, "%s: %v", path, err)
	}
	return root
}

type unitDump struct {
	Variables map[string]int
	Arrays    map[string]string
	Frame     codegen.Frame
}

func describeUnit(unit *binder.Unit) unitDump {
	d := unitDump{
		Variables: make(map[string]int),
		Arrays:    make(map[string]string),
		Frame:     codegen.ComputeFrame(unit),
	}
	for _, name := range unit.Symbols.Names() {
		d.Variables[name], _ = unit.Symbols.Lookup(name)
	}
	for _, name := range unit.Arrays.Names() {
		info, _ := unit.Arrays.Lookup(name)
		d.Arrays[name] = fmt.Sprintf("%s@%d", info.Kind, info.Base)
	}
	return d
}

// reportBindError locates a bind error in the source file when one was
// given. Lines of the tree file are not quoted, they hold JSON.
func reportBindError(w io.Writer, err error, treePath, sourceFile string) {
	var be *binder.Error
	if !errors.As(err, &be) {
		fmt.Fprintf(w, "ilc: error: %v\n", err)
		return
	}
	if sourceFile == "" {
		util.ReportLineError(w, treePath, be.Line, be.Msg, false)
		return
	}
	util.ReportLineError(w, sourceFile, be.Line, be.Msg, true)
}

func assembleAndLink(outFile, mainAsm string, withRuntime bool, linkerArgs []string) error {
	mainAsmFile, err := os.CreateTemp("", "ilc-main-*.s")
	if err != nil {
		return fmt.Errorf("failed to create temp file for main asm: %w", err)
	}
	defer os.Remove(mainAsmFile.Name())
	if _, err := mainAsmFile.WriteString(mainAsm); err != nil {
		return fmt.Errorf("failed to write to temp file for main asm: %w", err)
	}
	mainAsmFile.Close()

	ccArgs := []string{"-no-pie", "-o", outFile, mainAsmFile.Name()}
	if withRuntime {
		rtFile, err := os.CreateTemp("", "ilc-runtime-*.s")
		if err != nil {
			return fmt.Errorf("failed to create temp file for runtime asm: %w", err)
		}
		defer os.Remove(rtFile.Name())
		if _, err := ilcrt.WriteTo(rtFile); err != nil {
			rtFile.Close()
			return fmt.Errorf("failed to write runtime asm: %w", err)
		}
		rtFile.Close()
		ccArgs = append(ccArgs, rtFile.Name())
	}
	ccArgs = append(ccArgs, linkerArgs...)

	cmd := exec.Command("cc", ccArgs...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cc command failed: %w\nOutput:\n%s", err, string(output))
	}
	return nil
}
