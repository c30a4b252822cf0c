package policy

import _ "embed"

//go:embed policies/banking.yaml
var bankingYAML []byte

//go:embed policies/pharma.yaml
var pharmaYAML []byte

// builtinPolicies maps domain names to their embedded YAML content.
var builtinPolicies = map[string][]byte{
	"banking": bankingYAML,
	"pharma":  pharmaYAML,
}
