// Package provisioner abstracts the provisioning backend behind the
// Engine interface: stack creation plus the describe operations the
// deployment tracker polls. AWSEngine is the CloudFormation
// implementation; Fake is a scripted engine for tests.
package provisioner
