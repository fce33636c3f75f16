package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two guards in a row with the same return can be one condition.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// errorWrapping keeps error chains intact so callers can errors.As a
// *llm.ProviderError or *schema.ValidationError out of any wrapped error.
func errorWrapping(m dsl.Matcher) {
	m.Match(`fmt.Errorf($f, $*_, $err)`).
		Where(m["err"].Type.Is(`error`) && !m["f"].Text.Matches(`%w`)).
		Report(`error formatted without %w; wrap it so errors.Is/As still see it`)
}

// logging keeps every log line on the configured slog handler (stderr),
// leaving stdout to the conversation.
func logging(m dsl.Matcher) {
	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Print($*_)`, `log.Fatalf($*_)`).
		Where(m.File().Imports(`log`)).
		Report(`use log/slog instead of the standard log package`)

	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`library code must not print to stdout; return the value or write to an injected io.Writer`)
}
