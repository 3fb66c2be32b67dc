package template

// Intrinsic reference constructors. Values produced here sit inside a
// Resource property bag or an Output value and are resolved by the
// provisioning engine, not by this process.

// Ref references a parameter or resource by name; the engine
// substitutes the physical value.
func Ref(name string) map[string]any {
	return map[string]any{"Ref": name}
}

// GetAtt reads an attribute of a provisioned resource, such as an ARN
// or an endpoint address.
func GetAtt(logicalID, attribute string) map[string]any {
	return map[string]any{"Fn::GetAtt": []string{logicalID, attribute}}
}

// Sub substitutes ${...} variables inside the string using the engine's
// pseudo parameters and resource references.
func Sub(tmpl string) map[string]any {
	return map[string]any{"Fn::Sub": tmpl}
}

// SubWith is Sub with an explicit variable map for names that are not
// resolvable from the template namespace alone.
func SubWith(tmpl string, vars map[string]any) map[string]any {
	return map[string]any{"Fn::Sub": []any{tmpl, vars}}
}

// Base64 encodes the value engine-side, used for instance boot scripts.
func Base64(v any) map[string]any {
	return map[string]any{"Fn::Base64": v}
}
