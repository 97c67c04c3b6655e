package idgen

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Initialize sets up the Snowflake ID generator with a node ID.
// Only the first call has an effect.
func Initialize(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

func ensureNode() {
	if node == nil {
		_ = Initialize(1)
	}
}

// GenerateID generates a new Snowflake ID as a string
func GenerateID() string {
	ensureNode()
	return node.Generate().String()
}

// GenerateInt64 generates a new Snowflake ID usable as a positive account id
func GenerateInt64() int64 {
	ensureNode()
	return node.Generate().Int64()
}
