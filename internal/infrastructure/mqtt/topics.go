package mqtt

import "fmt"

const (
	// TopicPrefixCore is the base for topics published by Core.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixInstaller is the base for topics owned by the installer console.
	TopicPrefixInstaller = "graylogic/installer"
)

// Topics builds the MQTT topics the console uses.
type Topics struct{}

// CentralPlacementCommitted is where the committer announces a write to a
// central's port layout.
//
// Example: graylogic/core/central/central-7/placement/committed
func (Topics) CentralPlacementCommitted(centralID string) string {
	return fmt.Sprintf("%s/central/%s/placement/committed", TopicPrefixCore, centralID)
}

// AllCentralPlacementCommits matches commit announcements for every central.
//
// Pattern: graylogic/core/central/+/placement/committed
func (Topics) AllCentralPlacementCommits() string {
	return fmt.Sprintf("%s/central/+/placement/committed", TopicPrefixCore)
}

// ConsoleStatus carries the retained online/offline status of the console.
//
// Example: graylogic/installer/status
func (Topics) ConsoleStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixInstaller)
}
