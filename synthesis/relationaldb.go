package synthesis

import (
	"github.com/csakilan/FoundryBackend/canvas"
	"github.com/csakilan/FoundryBackend/naming"
	"github.com/csakilan/FoundryBackend/template"
)

// RelationalDB synthesizes a managed database instance. The node
// declares engine, database name and master credentials; instance
// class, storage, encryption, backups and network posture are
// hardcoded. Networking arrives through document parameters, so the
// definition itself stays environment-free.
type RelationalDB struct{}

// Kind implements Synthesizer.
func (s *RelationalDB) Kind() canvas.Kind { return canvas.KindRelationalDB }

// Synthesize implements Synthesizer.
func (s *RelationalDB) Synthesize(in Input) (*Result, error) {
	node := in.Node

	dbName, err := node.Require("dbName")
	if err != nil {
		return nil, err
	}
	engine, err := node.Require("engine")
	if err != nil {
		return nil, err
	}
	masterUsername, err := node.Require("masterUsername")
	if err != nil {
		return nil, err
	}
	masterUserPassword, err := node.Require("masterUserPassword")
	if err != nil {
		return nil, err
	}

	identifier, err := naming.PhysicalName(in.DeploymentID, node.ID, dbName, naming.DBInstance)
	if err != nil {
		return nil, err
	}

	lid := naming.LogicalID("RDS", node.ID)

	resource := &template.Resource{
		Type: "AWS::RDS::DBInstance",
		Properties: map[string]any{
			"DBName":                dbName,
			"Engine":                engine,
			"MasterUsername":        masterUsername,
			"MasterUserPassword":    masterUserPassword,
			"DBInstanceIdentifier":  identifier,
			"DBInstanceClass":       "db.t4g.micro",
			"AllocatedStorage":      20,
			"StorageType":           "gp3",
			"StorageEncrypted":      true,
			"MultiAZ":               false,
			"PubliclyAccessible":    false,
			"BackupRetentionPeriod": 7,
			"DeletionProtection":    false,
			"DBSubnetGroupName":     template.Ref(ParamDBSubnetGroup),
			"VPCSecurityGroups":     []any{template.Ref(ParamSecurityGroup)},
			"Tags": []map[string]any{
				{"Key": "Name", "Value": identifier},
				{"Key": "ManagedBy", "Value": managedByTag},
				{"Key": "Engine", "Value": engine},
			},
		},
	}

	return &Result{
		LogicalID:    lid,
		PhysicalName: identifier,
		Resources:    []NamedResource{{LogicalID: lid, Resource: resource}},
		Outputs: []template.Output{
			{Name: lid + "Endpoint", Description: "Connection endpoint for " + identifier, Value: template.GetAtt(lid, "Endpoint.Address")},
			{Name: lid + "Port", Description: "Port number for " + identifier, Value: template.GetAtt(lid, "Endpoint.Port")},
			{Name: lid + "Arn", Description: "ARN of " + identifier, Value: template.Sub("arn:aws:rds:${AWS::Region}:${AWS::AccountId}:db:${" + lid + "}")},
			{Name: lid + "InstanceId", Description: "DB Instance Identifier", Value: template.Ref(lid)},
		},
		Bindings: Bindings{
			NameSub: nameSub(lid),
			DB: &DBBindings{
				HostSub:  attrSub(lid, "Endpoint.Address"),
				PortSub:  attrSub(lid, "Endpoint.Port"),
				Name:     dbName,
				Username: masterUsername,
				Password: masterUserPassword,
				Engine:   engine,
			},
		},
	}, nil
}
