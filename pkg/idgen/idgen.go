package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// BatchNumberGenerator produces batch numbers for batches whose caller did
// not supply one (merge targets)
type BatchNumberGenerator interface {
	Next(prefix string) string
}

type snowflakeGenerator struct {
	node *snowflake.Node
}

// NewSnowflake returns a generator unique per node id (0-1023)
func NewSnowflake(nodeID int64) (BatchNumberGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &snowflakeGenerator{node: node}, nil
}

func (g *snowflakeGenerator) Next(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, g.node.Generate().Base36())
}
