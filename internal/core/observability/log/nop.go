package log

var _ Log = Nop{}

// Nop discards everything. Useful as a default and in tests.
type Nop struct{}

func (Nop) Debug(string, ...Field) {}
func (Nop) Info(string, ...Field)  {}
func (Nop) Warn(string, ...Field)  {}
func (Nop) Error(string, ...Field) {}
func (n Nop) With(...Field) Log    { return n }
func (Nop) SetLevel(Level)         {}
func (Nop) GetLevel() Level        { return LevelInfo }
