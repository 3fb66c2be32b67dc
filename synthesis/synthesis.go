package synthesis

import (
	"fmt"

	"github.com/csakilan/FoundryBackend/canvas"
	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/template"
)

// Parameter names every synthesized resource may reference. The
// assembler declares them; synthesizers only emit Ref expressions.
const (
	ParamVpcID         = "VpcId"
	ParamSubnetID      = "SubnetId"
	ParamSecurityGroup = "SecurityGroupId"
	ParamDBSubnetGroup = "DBSubnetGroupName"
)

// managedByTag marks every generated resource so operators can tell
// platform-owned infrastructure from hand-made resources.
const managedByTag = "CloudFormation"

// EnvVar is one boot-time configuration binding injected into a compute
// node's startup script. Value is either a literal or a substitution
// fragment in the engine's ${LogicalId} / ${LogicalId.Attribute}
// grammar, resolved when the boot script passes through Sub.
type EnvVar struct {
	Name  string
	Value string
}

// PolicyGrant is one named least-privilege policy attached to a compute
// node's role: a fixed action set scoped to the resolved references of
// the dependencies of one kind.
type PolicyGrant struct {
	Name      string
	Actions   []string
	Resources []any
}

// AccessGrant collects every policy a compute node needs. Empty grants
// synthesize no role at all.
type AccessGrant struct {
	Policies []PolicyGrant
}

// Empty reports whether the grant carries no policies.
func (g *AccessGrant) Empty() bool {
	return g == nil || len(g.Policies) == 0
}

// DBBindings carries the connection material of one relational database
// for env wiring: endpoint substitution fragments plus the literal
// credentials the node declared.
type DBBindings struct {
	HostSub  string
	PortSub  string
	Name     string
	Username string
	Password string
	Engine   string
}

// Bindings is what downstream wiring may reference about a synthesized
// resource. NameSub resolves to the physical name, ArnRef scopes policy
// statements, DB is set only for relational databases.
type Bindings struct {
	NameSub string
	ArnRef  any
	DB      *DBBindings
}

// NamedResource pairs a logical id with its resource definition,
// preserving the order the synthesizer declared them in.
type NamedResource struct {
	LogicalID string
	Resource  *template.Resource
}

// Result is everything one node synthesizes: the primary resource's
// logical id and physical name, every resource definition (a compute
// node with access dependencies adds its role and instance profile),
// the document outputs, and the bindings later nodes wire against.
type Result struct {
	LogicalID    string
	PhysicalName string
	Resources    []NamedResource
	Outputs      []template.Output
	Bindings     Bindings
}

// Input carries one node into synthesis. Env and Grant are populated
// only for compute nodes, by the access binder, before synthesis runs.
type Input struct {
	DeploymentID string
	Node         *canvas.Node
	Env          []EnvVar
	Grant        *AccessGrant
}

// Synthesizer converts one node kind's attributes into a Result.
// Implementations are pure: no I/O, no shared state, deterministic for
// identical input.
type Synthesizer interface {
	Kind() canvas.Kind
	Synthesize(in Input) (*Result, error)
}

// Registry maps node kinds to their synthesizers. It is populated
// during construction and read-only afterwards, so lookups take no
// lock.
type Registry struct {
	synthesizers map[canvas.Kind]Synthesizer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{synthesizers: make(map[canvas.Kind]Synthesizer)}
}

// Register adds a synthesizer for its kind. Registering a kind twice is
// a wiring error and is rejected.
func (r *Registry) Register(s Synthesizer) error {
	if s == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "synthesizer validation")
	}
	if _, exists := r.synthesizers[s.Kind()]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("synthesizer for kind %s already registered", s.Kind()),
			"Registry", "Register", "duplicate kind check")
	}
	r.synthesizers[s.Kind()] = s
	return nil
}

// For returns the synthesizer registered for a kind.
func (r *Registry) For(kind canvas.Kind) (Synthesizer, error) {
	s, ok := r.synthesizers[kind]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no synthesizer for kind %s", errors.ErrUnknownKind, kind),
			"Registry", "For", "kind lookup")
	}
	return s, nil
}

// Defaults returns a registry covering all four node kinds.
func Defaults() *Registry {
	r := NewRegistry()
	for _, s := range []Synthesizer{
		&ObjectStore{},
		&KeyValueTable{},
		&RelationalDB{},
		&Compute{},
	} {
		// Register cannot fail here: kinds are distinct by construction.
		if err := r.Register(s); err != nil {
			panic("synthesis: default registry: " + err.Error())
		}
	}
	return r
}

// nameSub renders the substitution fragment that resolves to a
// resource's physical name inside a Sub expression.
func nameSub(logicalID string) string {
	return "${" + logicalID + "}"
}

// attrSub renders the substitution fragment for a resource attribute.
func attrSub(logicalID, attribute string) string {
	return "${" + logicalID + "." + attribute + "}"
}
