package script

type JsRuntime interface {
	RunScript(script string) (any, error)
	// Evaluate runs expression with every key of resolver bound as a global variable
	Evaluate(expression string, resolver Resolver) (any, error)
}

// Resolver provides the variables visible to a script.
type Resolver interface {
	ContainsKey(key string) bool
	Get(key string) any
	KeySet() []string
}
