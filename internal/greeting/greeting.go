// Package greeting is the native greeting library exposed to script hosts
// through internal/greetmod.
package greeting

// Hello returns the fixed library greeting.
func Hello() string {
	return "Greetings from C++!"
}

// Greeting is a personalized greeting for a single name.
type Greeting struct {
	name string
}

// New returns a Greeting for name.
func New(name string) *Greeting {
	return &Greeting{name: name}
}

// Name returns the name the greeting was built with.
func (g *Greeting) Name() string {
	return g.name
}

// Hello returns the personalized greeting. It is computed on every call.
func (g *Greeting) Hello() string {
	return "Greetings from C++, " + g.name + "!"
}
