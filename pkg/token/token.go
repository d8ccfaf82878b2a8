package token

type Type int

// Operator tags carried by binary and unary expression nodes
const (
	Invalid Type = iota
	Plus
	Minus
	Star
	Slash
	Rem
	Shl
	Shr
	Lt
	Gt
	EqEq
	Neq
	Lte
	Gte
	And
	Or
	Not
	Neg
)

var OpMap = map[string]Type{
	"add":        Plus,
	"sub":        Minus,
	"mul":        Star,
	"div":        Slash,
	"mod":        Rem,
	"shl":        Shl,
	"shr":        Shr,
	"less":       Lt,
	"greater":    Gt,
	"equal":      EqEq,
	"not-equal":  Neq,
	"less-eq":    Lte,
	"greater-eq": Gte,
	"and":        And,
	"or":         Or,
	"not":        Not,
	"negate":     Neg,
}

// Reverse mapping from Type to the tag name
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range OpMap {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return "invalid"
}

// IsUnary reports whether the operator takes a single (right-hand) operand.
func (t Type) IsUnary() bool { return t == Not || t == Neg }

// Token is the source position a node was parsed from. Column and Len are
// zero when the parser only recorded a line.
type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
