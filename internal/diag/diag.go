// Package diag implements the structured diagnostic log described in
// spec.md §6 ("Exit/diagnostics") and §7 (error taxonomy/propagation): a
// Logger that accumulates severity-tagged records with an optional source
// location, and supports nested transactions so a speculative compilation
// attempt (template instantiation, overload probing) can discard its log
// entries on failure without losing ones emitted before it began.
//
// The transaction mechanics generalize the teacher's util.NewPerror
// accumulator (src/util/perror.go), which only ever collected fatal errors
// from parallel workers; here every severity is buffered and transactions
// nest, backed by zerolog for the line format the host ultimately renders.
package diag

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tsnlang/tsn/internal/source"
)

// Severity mirrors spec.md §6: {debug, info, warn, error}.
type Severity int

const (
	Debug Severity = iota
	Info
	Warn
	Error
)

func (s Severity) zerolevel() zerolog.Level {
	switch s {
	case Debug:
		return zerolog.DebugLevel
	case Info:
		return zerolog.InfoLevel
	case Warn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (s Severity) String() string {
	switch s {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	default:
		return "error"
	}
}

// Code identifies the abstract error category from spec.md §7. Codes are
// grouped by stage so a host can filter/aggregate by category without
// string-matching messages.
type Code string

const (
	// Lex errors.
	CodeUnterminatedLiteral Code = "lex.unterminated_literal"
	CodeUnknownByte         Code = "lex.unknown_byte"

	// Parse errors.
	CodeExpectedIdentifier Code = "parse.expected_identifier"
	CodeExpectedType       Code = "parse.expected_type"
	CodeExpectedKeyword    Code = "parse.expected_keyword"
	CodeExpectedOperator   Code = "parse.expected_operator"
	CodeExpectedExpression Code = "parse.expected_expression"
	CodeUnexpectedToken    Code = "parse.unexpected_token"
	CodeUnexpectedEOF      Code = "parse.unexpected_eof"
	CodeMalformedImport    Code = "parse.malformed_import"

	// Compile errors.
	CodeUnknownSymbol          Code = "compile.unknown_symbol"
	CodeAmbiguousOverload      Code = "compile.ambiguous_overload"
	CodeNoMatchingOverload     Code = "compile.no_matching_overload"
	CodeNotAssignable          Code = "compile.not_assignable"
	CodeNotCallable            Code = "compile.not_callable"
	CodeNoSuchProperty         Code = "compile.no_such_property"
	CodeDuplicateDeclaration   Code = "compile.duplicate_declaration"
	CodeTypeMismatch           Code = "compile.type_mismatch"
	CodeRestrictedProperty     Code = "compile.restricted_property"
	CodeSubtypeRequired        Code = "compile.subtype_required"
	CodeUnexpectedSubtype      Code = "compile.unexpected_subtype"
	CodeSymbolNotInModule      Code = "compile.symbol_not_in_module"
	CodeNoDefaultConstructor   Code = "compile.no_default_constructor"
	CodeVoidCtorDtorReturns    Code = "compile.void_ctor_dtor_returns_value"
	CodeIllegalDelete          Code = "compile.illegal_delete"
	CodeTemplateInstantiationFailed Code = "compile.template_instantiation_failed"

	// Runtime errors.
	CodeBufferOutOfRange     Code = "runtime.buffer_out_of_range"
	CodeArrayIndexOutOfRange Code = "runtime.array_index_out_of_range"
	CodeNullPointerAccess    Code = "runtime.null_pointer_access"
	CodePointerTypeMismatch  Code = "runtime.pointer_assignment_type_mismatch"
	CodeInvalidObjectAccess  Code = "runtime.invalid_object_access"
	CodeInvalidEnumValue     Code = "runtime.invalid_enum_value"
	CodeDylibLoadFailure     Code = "runtime.dylib_load_failure"
	CodeClosureBindNonMethod Code = "runtime.closure_bind_non_method"
	CodeInvalidFuncPtrSig    Code = "runtime.invalid_function_pointer_signature"
)

// Record is one accumulated diagnostic.
type Record struct {
	Severity Severity
	Code     Code
	Message  string
	Loc      *source.Location
}

func (r Record) String() string {
	if r.Loc != nil {
		return fmt.Sprintf("[%s] %s: %s (%s)", r.Severity, r.Code, r.Message, r.Loc)
	}
	return fmt.Sprintf("[%s] %s: %s", r.Severity, r.Code, r.Message)
}

// Logger accumulates Records and can render them through zerolog. It is safe
// for concurrent use; the optimizer's worker goroutines all write to one
// shared Logger (see internal/optimize).
type Logger struct {
	mu      sync.Mutex
	records []Record
	stack   [][]Record // saved record slices for nested Begin/Commit/Revert
	zl      zerolog.Logger
	debug   bool
}

// New creates a Logger that writes rendered records to w (os.Stderr if nil).
// debugEnabled mirrors the debugLogging config option (spec.md §6): when
// false, Debug-severity records are still buffered (for host inspection) but
// are not written to zl.
func New(w *os.File, debugEnabled bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		zl:    zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger(),
		debug: debugEnabled,
	}
}

func (l *Logger) log(sev Severity, code Code, loc *source.Location, format string, args ...interface{}) {
	r := Record{Severity: sev, Code: code, Message: fmt.Sprintf(format, args...), Loc: loc}
	l.mu.Lock()
	l.records = append(l.records, r)
	l.mu.Unlock()
	if sev == Debug && !l.debug {
		return
	}
	ev := l.zl.WithLevel(sev.zerolevel()).Str("code", string(code))
	if loc != nil {
		ev = ev.Str("loc", loc.String())
	}
	ev.Msg(r.Message)
}

// Debug records a debug-severity diagnostic, e.g. per-pass optimizer logs.
func (l *Logger) Debug(code Code, loc *source.Location, format string, args ...interface{}) {
	l.log(Debug, code, loc, format, args...)
}

// Info records an info-severity diagnostic.
func (l *Logger) Info(code Code, loc *source.Location, format string, args ...interface{}) {
	l.log(Info, code, loc, format, args...)
}

// Warn records a warn-severity diagnostic.
func (l *Logger) Warn(code Code, loc *source.Location, format string, args ...interface{}) {
	l.log(Warn, code, loc, format, args...)
}

// Err records an error-severity diagnostic. Parse and lex errors are
// accumulated this way per spec.md §7; the caller decides whether an Err
// record aborts the current unit.
func (l *Logger) Err(code Code, loc *source.Location, format string, args ...interface{}) {
	l.log(Error, code, loc, format, args...)
}

// Records returns a copy of every record accumulated so far.
func (l *Logger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// HasErrors reports whether any Error-severity record has been accumulated.
func (l *Logger) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.Severity == Error {
			return true
		}
	}
	return false
}

// Transaction is a handle returned by Begin; pass it to Commit or Revert.
type Transaction struct {
	depth int
}

// Begin opens a nested transaction: records logged after Begin can be
// discarded later via Revert without disturbing records logged before it.
// Used by template instantiation (spec.md §4.3.5) to retry a failed
// speculative recompilation cleanly.
func (l *Logger) Begin() Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := make([]Record, len(l.records))
	copy(snapshot, l.records)
	l.stack = append(l.stack, snapshot)
	return Transaction{depth: len(l.stack)}
}

// Commit keeps everything logged since the matching Begin.
func (l *Logger) Commit(t Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.depth == len(l.stack) {
		l.stack = l.stack[:t.depth-1]
	}
}

// Revert discards every record logged since the matching Begin.
func (l *Logger) Revert(t Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.depth == len(l.stack) {
		l.records = l.stack[t.depth-1]
		l.stack = l.stack[:t.depth-1]
	}
}
