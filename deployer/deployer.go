package deployer

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/csakilan/FoundryBackend/canvas"
	"github.com/csakilan/FoundryBackend/compiler"
	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/generation"
	"github.com/csakilan/FoundryBackend/metric"
	"github.com/csakilan/FoundryBackend/provisioner"
	"github.com/csakilan/FoundryBackend/synthesis"
	"github.com/csakilan/FoundryBackend/template"
)

const (
	stackNamePrefix     = "foundry-stack-"
	dbSubnetGroupPrefix = "foundry-db-subnet-group-"
)

// StackName returns the stack name for a deployment identifier under
// the default prefix. Deployers built with WithStackPrefix derive
// their own names.
func StackName(deploymentID string) string {
	return stackNamePrefix + deploymentID
}

// Result describes one submitted deployment.
type Result struct {
	DeploymentID string                    `json:"deploymentId"`
	StackName    string                    `json:"stackName"`
	StackID      string                    `json:"stackId"`
	Status       string                    `json:"status"`
	Outputs      []provisioner.StackOutput `json:"outputs"`
	KeyPairs     []KeyPair                 `json:"keyPairs,omitempty"`
}

// StackStatus is a point-in-time view of a deployed stack.
type StackStatus struct {
	StackName string                    `json:"stackName"`
	Status    string                    `json:"status"`
	Outputs   []provisioner.StackOutput `json:"outputs"`
}

// Deployer runs the deployment pipeline: compile the canvas, provision
// SSH key pairs for its compute nodes, discover the target networking,
// persist the compiled document and submit the stack. Compilation runs
// first so an invalid canvas is rejected before anything touches the
// backend.
type Deployer struct {
	engine   provisioner.Engine
	ec2      EC2API
	rds      RDSAPI
	compiler *compiler.Compiler
	store    *generation.Store
	logger   *slog.Logger
	core     *metric.Metrics
	newID    func() string
	prefix   string
	keyPairs bool
}

// Option configures a Deployer.
type Option func(*Deployer) error

// WithCompiler overrides the default compiler.
func WithCompiler(c *compiler.Compiler) Option {
	return func(d *Deployer) error {
		if c == nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Deployer", "WithCompiler",
				"compiler cannot be nil")
		}
		d.compiler = c
		return nil
	}
}

// WithStore persists each compiled document before submission.
func WithStore(store *generation.Store) Option {
	return func(d *Deployer) error {
		if store == nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Deployer", "WithStore",
				"store cannot be nil")
		}
		d.store = store
		return nil
	}
}

// WithLogger sets the deployer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deployer) error {
		if logger != nil {
			d.logger = logger.With("component", "deployer")
		}
		return nil
	}
}

// WithMetrics records deployment counters and compile timings with the
// registry's core metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(d *Deployer) error {
		if registry != nil {
			d.core = registry.CoreMetrics()
		}
		return nil
	}
}

// WithIDGenerator overrides how deployment identifiers are generated.
func WithIDGenerator(fn func() string) Option {
	return func(d *Deployer) error {
		if fn == nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Deployer", "WithIDGenerator",
				"generator cannot be nil")
		}
		d.newID = fn
		return nil
	}
}

// WithStackPrefix overrides the prefix stack names are derived from.
// The deployment identifier is joined to the prefix with a hyphen.
func WithStackPrefix(prefix string) Option {
	return func(d *Deployer) error {
		if prefix == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Deployer", "WithStackPrefix",
				"prefix cannot be empty")
		}
		d.prefix = strings.TrimSuffix(prefix, "-") + "-"
		return nil
	}
}

// WithKeyPairs toggles SSH key pair creation for compute nodes.
// Enabled by default. When disabled, instances launch without a key
// name and the result carries no key material.
func WithKeyPairs(enabled bool) Option {
	return func(d *Deployer) error {
		d.keyPairs = enabled
		return nil
	}
}

// New creates a deployer over the given provisioning engine and AWS
// clients. Build the clients with ec2.NewFromConfig and
// rds.NewFromConfig over a loaded AWS config.
func New(engine provisioner.Engine, ec2Client EC2API, rdsClient RDSAPI, opts ...Option) (*Deployer, error) {
	if engine == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Deployer", "New",
			"engine cannot be nil")
	}
	if ec2Client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Deployer", "New",
			"EC2 client cannot be nil")
	}
	if rdsClient == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Deployer", "New",
			"RDS client cannot be nil")
	}

	d := &Deployer{
		engine:   engine,
		ec2:      ec2Client,
		rds:      rdsClient,
		compiler: compiler.Default(),
		logger:   slog.Default().With("component", "deployer"),
		newID:    shortID,
		prefix:   stackNamePrefix,
		keyPairs: true,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, errors.WrapInvalid(err, "Deployer", "New", "apply option")
		}
	}
	return d, nil
}

// shortID generates the 8-character deployment identifier embedded in
// stack and resource names.
func shortID() string {
	return uuid.NewString()[:8]
}

func (d *Deployer) stackName(deploymentID string) string {
	return d.prefix + deploymentID
}

// Deploy compiles and submits a canvas. A canvas without a deployment
// identifier is assigned a generated one in place so compiled resource
// names and the stack name agree. The returned result carries the
// stack handle, its initial status and any key pairs created on the
// way; private key material appears once and is never stored.
func (d *Deployer) Deploy(ctx context.Context, cv *canvas.Canvas) (*Result, error) {
	if d.core != nil {
		d.core.RecordDeploymentStarted()
	}
	res, err := d.deploy(ctx, cv)
	if err != nil {
		if d.core != nil {
			d.core.RecordDeploymentFailed()
		}
		return nil, err
	}
	return res, nil
}

func (d *Deployer) deploy(ctx context.Context, cv *canvas.Canvas) (*Result, error) {
	if cv == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("canvas is nil"),
			"Deployer", "Deploy", "validate canvas")
	}

	deploymentID := cv.DeploymentID
	if deploymentID == "" {
		deploymentID = d.newID()
		cv.DeploymentID = deploymentID
	}
	stackName := d.stackName(deploymentID)
	logger := d.logger.With("deployment", deploymentID, "stack", stackName)
	logger.Info("starting deployment", "nodes", len(cv.Nodes), "edges", len(cv.Edges))

	start := time.Now()
	doc, err := d.compiler.Compile(cv)
	if err != nil {
		return nil, err
	}
	if d.core != nil {
		d.core.RecordCompileDuration(time.Since(start))
	}
	logger.Info("document compiled", "resources", doc.ResourceCount())

	var keyPairs []KeyPair
	if d.keyPairs {
		keyPairs, err = d.createKeyPairs(ctx, deploymentID, cv)
		if err != nil {
			return nil, err
		}
		if err := injectKeyNames(doc, keyPairs); err != nil {
			return nil, err
		}
	}

	network, err := d.discoverNetwork(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("network discovered", "vpc", network.VpcID,
		"subnet", network.SubnetID, "security_group", network.SecurityGroupID)

	params := map[string]string{
		synthesis.ParamVpcID:         network.VpcID,
		synthesis.ParamSubnetID:      network.SubnetID,
		synthesis.ParamSecurityGroup: network.SecurityGroupID,
	}
	if doc.HasParameter(synthesis.ParamDBSubnetGroup) {
		group, err := d.ensureDBSubnetGroup(ctx, network.VpcID)
		if err != nil {
			return nil, err
		}
		params[synthesis.ParamDBSubnetGroup] = group
	}

	if err := d.persist(ctx, deploymentID, stackName, doc); err != nil {
		return nil, err
	}

	stackID, err := d.engine.CreateStack(ctx, stackName, doc, params)
	if err != nil {
		return nil, err
	}

	status, outputs := d.initialStatus(ctx, stackName, logger)
	logger.Info("stack submitted", "stack_id", stackID, "status", status)

	return &Result{
		DeploymentID: deploymentID,
		StackName:    stackName,
		StackID:      stackID,
		Status:       status,
		Outputs:      outputs,
		KeyPairs:     keyPairs,
	}, nil
}

// Status returns the stack's current status and outputs.
func (d *Deployer) Status(ctx context.Context, stackName string) (*StackStatus, error) {
	if stackName == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("stack name is empty"),
			"Deployer", "Status", "validate stack name")
	}
	status, err := d.engine.DescribeStatus(ctx, stackName)
	if err != nil {
		return nil, err
	}
	outputs, err := d.engine.DescribeOutputs(ctx, stackName)
	if err != nil {
		return nil, err
	}
	return &StackStatus{StackName: stackName, Status: status, Outputs: outputs}, nil
}

// persist writes the rendered document to the generation store. A
// record left by an earlier submission of the same deployment is
// updated in place.
func (d *Deployer) persist(ctx context.Context, deploymentID, stackName string, doc *template.Document) error {
	if d.store == nil {
		return nil
	}
	rendered, err := doc.JSON()
	if err != nil {
		return errors.WrapFatal(err, "Deployer", "Deploy", "render document for record")
	}

	rec := &generation.Record{ID: deploymentID, StackName: stackName, Document: rendered}
	err = d.store.Create(ctx, rec)
	if err == nil {
		return nil
	}
	if !stderrors.Is(err, errors.ErrRecordExists) {
		return err
	}
	current, err := d.store.Get(ctx, deploymentID)
	if err != nil {
		return err
	}
	rec.Version = current.Version
	return d.store.Update(ctx, rec)
}

// initialStatus fetches the state the backend reports right after
// submission. The stack already exists at this point, so a describe
// failure is logged and papered over with the known initial status
// rather than failing the whole deployment.
func (d *Deployer) initialStatus(ctx context.Context, stackName string, logger *slog.Logger) (string, []provisioner.StackOutput) {
	status, err := d.engine.DescribeStatus(ctx, stackName)
	if err != nil {
		logger.Debug("initial status unavailable", "error", err)
		return "CREATE_IN_PROGRESS", nil
	}
	outputs, err := d.engine.DescribeOutputs(ctx, stackName)
	if err != nil {
		return status, nil
	}
	return status, outputs
}
