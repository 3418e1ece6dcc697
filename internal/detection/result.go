package detection

// Result describes one secret found by the engine.
type Result struct {
	RuleID      string
	Description string
	secret      string
}
