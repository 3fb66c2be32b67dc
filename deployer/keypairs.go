package deployer

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"

	"github.com/csakilan/FoundryBackend/canvas"
	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/naming"
	"github.com/csakilan/FoundryBackend/template"
)

// Key pair names cap at the backend's limit.
const maxKeyNameLength = 255

// defaultInstanceName substitutes for compute nodes submitted without
// a display name when deriving key pair names.
const defaultInstanceName = "instance"

// KeyPair describes one SSH key pair provisioned for a compute node.
// Material is the PEM private key and is only present when the pair
// was created by this deployment; the backend never returns it again.
type KeyPair struct {
	Name         string `json:"keyName"`
	Fingerprint  string `json:"keyFingerprint,omitempty"`
	Material     string `json:"keyMaterial,omitempty"`
	NodeID       string `json:"nodeId"`
	InstanceName string `json:"instanceName"`
	Existed      bool   `json:"exists,omitempty"`
}

// KeyPairName derives the key pair name for one compute node: the
// deployment identifier, the first characters of the node id, and the
// sanitized instance name.
func KeyPairName(deploymentID, nodeID, instanceName string) string {
	short := nodeID
	if len(short) > 6 {
		short = short[:6]
	}
	short = strings.NewReplacer("-", "", ":", "").Replace(short)
	sanitized := strings.NewReplacer(" ", "-", ":", "-").Replace(instanceName)

	name := fmt.Sprintf("%s-%s-%s-key", deploymentID, short, sanitized)
	if len(name) > maxKeyNameLength {
		name = name[:maxKeyNameLength]
	}
	return name
}

// createKeyPairs provisions one key pair per compute node. Nodes that
// carry their own keyName attribute are skipped; the compiled document
// already references that key. A name collision on the backend reuses
// the existing pair, whose private key cannot be recovered.
func (d *Deployer) createKeyPairs(ctx context.Context, deploymentID string, cv *canvas.Canvas) ([]KeyPair, error) {
	var pairs []KeyPair
	for _, node := range cv.OfKind(canvas.KindCompute) {
		if own, ok := node.StringAttr("keyName"); ok && own != "" {
			continue
		}

		instanceName, ok := node.StringAttr("name")
		if !ok || instanceName == "" {
			instanceName = defaultInstanceName
		}
		keyName := KeyPairName(deploymentID, node.ID, instanceName)

		out, err := d.ec2.CreateKeyPair(ctx, &ec2.CreateKeyPairInput{
			KeyName: aws.String(keyName),
		})
		if err != nil {
			var apiErr smithy.APIError
			if stderrors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidKeyPair.Duplicate" {
				d.logger.Warn("key pair already exists, private key cannot be retrieved",
					"key", keyName, "node", node.ID)
				pairs = append(pairs, KeyPair{
					Name:         keyName,
					NodeID:       node.ID,
					InstanceName: instanceName,
					Existed:      true,
				})
				continue
			}
			return nil, wrapAWS(err, "Deploy", "create key pair "+keyName)
		}

		d.logger.Info("key pair created", "key", keyName, "node", node.ID)
		pairs = append(pairs, KeyPair{
			Name:         aws.ToString(out.KeyName),
			Fingerprint:  aws.ToString(out.KeyFingerprint),
			Material:     aws.ToString(out.KeyMaterial),
			NodeID:       node.ID,
			InstanceName: instanceName,
		})
	}
	return pairs, nil
}

// injectKeyNames attaches each provisioned key to its compute resource
// in the compiled document, so the stored record and the submitted
// template both carry the wiring.
func injectKeyNames(doc *template.Document, pairs []KeyPair) error {
	for _, kp := range pairs {
		lid := naming.LogicalID("EC2", kp.NodeID)
		res, ok := doc.Resource(lid)
		if !ok {
			return errors.WrapFatal(fmt.Errorf("document has no resource %s", lid),
				"Deployer", "Deploy", "attach key pair "+kp.Name)
		}
		res.Properties["KeyName"] = kp.Name
	}
	return nil
}
