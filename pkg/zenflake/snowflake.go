package zenflake

import (
	"hash/adler32"
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	// NodeBits holds the number of bits to use for Node
	// Remember, you have a total 22 bits to share between Node/Step
	NodeBits uint8 = 10

	// StepBits holds the number of bits to use for Step
	// Remember, you have a total 22 bits to share between Node/Step
	StepBits uint8 = 12

	// internal values of bwmarrin/snowflake
	nodeMax   int64 = -1 ^ (-1 << NodeBits)
	nodeMask        = nodeMax << StepBits
	nodeShift       = StepBits

	globalNode     *snowflake.Node
	globalNodeOnce sync.Once
)

func init() {
	snowflake.NodeBits = NodeBits
	snowflake.StepBits = StepBits
}

// GetNodeMask returns the bit mask selecting the node part of a generated key.
func GetNodeMask() int64 {
	return nodeMask
}

// GetNodeId extracts the node id a key was generated on.
func GetNodeId(key int64) int64 {
	return (key & nodeMask) >> int64(nodeShift)
}

// NewNode creates a generator for the given node id.
func NewNode(nodeId int64) (*snowflake.Node, error) {
	return snowflake.NewNode(nodeId & nodeMax)
}

// GlobalNode returns the process wide generator.
// The node id is derived from the environment so that two engines started on
// different hosts are unlikely to share one.
func GlobalNode() *snowflake.Node {
	globalNodeOnce.Do(func() {
		hash32 := adler32.New()
		for _, e := range os.Environ() {
			hash32.Write([]byte(e))
		}
		node, err := NewNode(int64(hash32.Sum32()))
		if err != nil {
			panic("can't initialize snowflake ID generator. Message: " + err.Error())
		}
		globalNode = node
	})
	return globalNode
}
