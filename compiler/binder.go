package compiler

import (
	"fmt"

	"github.com/csakilan/FoundryBackend/synthesis"
	"github.com/csakilan/FoundryBackend/template"
)

// Fixed minimal action sets per dependency kind.
var (
	objectStoreActions = []string{
		"s3:GetObject",
		"s3:PutObject",
		"s3:DeleteObject",
		"s3:ListBucket",
	}
	keyValueActions = []string{
		"dynamodb:GetItem",
		"dynamodb:PutItem",
		"dynamodb:UpdateItem",
		"dynamodb:DeleteItem",
		"dynamodb:Query",
		"dynamodb:Scan",
	}
)

// BindAccess derives one compute node's access grant and boot-time
// environment from its resolved dependencies. Object stores and
// key-value tables contribute policy statements plus a name binding;
// relational databases use credential-based access and contribute only
// environment bindings. The first dependency of a kind gets the
// canonical variable name, later ones a 1-based index. A node without
// dependencies yields nothing.
func BindAccess(deps *DependencySet, resolved map[string]*synthesis.Result) ([]synthesis.EnvVar, *synthesis.AccessGrant) {
	if deps.Empty() {
		return nil, nil
	}

	var env []synthesis.EnvVar
	grant := &synthesis.AccessGrant{}

	if len(deps.ObjectStores) > 0 {
		var resources []any
		for idx, id := range deps.ObjectStores {
			res := resolved[id]
			env = append(env, synthesis.EnvVar{
				Name:  indexedName("S3_BUCKET_NAME", "S3_BUCKET_%d", idx),
				Value: res.Bindings.NameSub,
			})
			// Scope to the bucket itself and to every object in it.
			resources = append(resources,
				res.Bindings.ArnRef,
				template.SubWith("${BucketArn}/*", map[string]any{"BucketArn": res.Bindings.ArnRef}),
			)
		}
		grant.Policies = append(grant.Policies, synthesis.PolicyGrant{
			Name:      "S3AccessPolicy",
			Actions:   objectStoreActions,
			Resources: resources,
		})
	}

	if len(deps.KeyValueTables) > 0 {
		var resources []any
		for idx, id := range deps.KeyValueTables {
			res := resolved[id]
			env = append(env, synthesis.EnvVar{
				Name:  indexedName("DYNAMODB_TABLE_NAME", "DYNAMODB_TABLE_%d", idx),
				Value: res.Bindings.NameSub,
			})
			resources = append(resources, res.Bindings.ArnRef)
		}
		grant.Policies = append(grant.Policies, synthesis.PolicyGrant{
			Name:      "DynamoDBAccessPolicy",
			Actions:   keyValueActions,
			Resources: resources,
		})
	}

	for idx, id := range deps.RelationalDBs {
		db := resolved[id].Bindings.DB
		prefix := "DB_"
		if idx > 0 {
			prefix = fmt.Sprintf("DB_%d_", idx+1)
		}
		env = append(env,
			synthesis.EnvVar{Name: prefix + "HOST", Value: db.HostSub},
			synthesis.EnvVar{Name: prefix + "PORT", Value: db.PortSub},
			synthesis.EnvVar{Name: prefix + "NAME", Value: db.Name},
			synthesis.EnvVar{Name: prefix + "USER", Value: db.Username},
			synthesis.EnvVar{Name: prefix + "PASSWORD", Value: db.Password},
			synthesis.EnvVar{Name: prefix + "ENGINE", Value: db.Engine},
		)
	}

	if grant.Empty() {
		grant = nil
	}
	return env, grant
}

func indexedName(canonical, indexed string, idx int) string {
	if idx == 0 {
		return canonical
	}
	return fmt.Sprintf(indexed, idx+1)
}
