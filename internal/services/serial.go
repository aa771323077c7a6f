package services

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
)

// SerialGenerator produces invoice identifiers.
type SerialGenerator interface {
	// Serial returns a fresh system serial.
	Serial() string
	// Renumber returns a collision-resistant invoice number and serial pair.
	Renumber() (number, serial string)
}

// SnowflakeSerials issues time-ordered serials from a snowflake node.
type SnowflakeSerials struct {
	node *snowflake.Node
	now  func() time.Time
}

func NewSnowflakeSerials(nodeID int64) (*SnowflakeSerials, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.Wrapf(err, "snowflake node %d", nodeID)
	}
	return &SnowflakeSerials{node: node, now: time.Now}, nil
}

func (s *SnowflakeSerials) Serial() string {
	return "SN" + s.node.Generate().String()
}

// Renumber uses the current millisecond plus a random three digit suffix.
func (s *SnowflakeSerials) Renumber() (string, string) {
	ms := s.now().UnixMilli()
	return fmt.Sprintf("INV%d%03d", ms, rand.IntN(1000)),
		fmt.Sprintf("SN%d%03d", ms, rand.IntN(1000))
}
