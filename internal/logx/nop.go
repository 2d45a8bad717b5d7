package logx

// Nop returns a Logger that drops every entry. Constructors fall back to it
// when given a nil logger.
func Nop() Logger { return discard{} }

type discard struct{}

func (discard) Debug(string, ...Field) {}
func (discard) Info(string, ...Field)  {}
func (discard) Warn(string, ...Field)  {}
func (discard) Error(string, ...Field) {}

func (d discard) With(...Field) Logger { return d }

func (discard) Sync() error { return nil }

var _ Logger = discard{}
