package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	RoundKey         attribute.Key = "round"
	NodeCountKey     attribute.Key = "node.count"
	ConsensusTypeKey attribute.Key = "consensus.type"
	StatusKey        attribute.Key = "status"
)

func Round(round uint64) attribute.KeyValue {
	return RoundKey.Int64(int64(round)) /* #nosec G115 its unlikely that value of round exceeds int64 max value */
}

func NodeCount(n int) attribute.KeyValue {
	return NodeCountKey.Int(n)
}

func ConsensusType(name string) attribute.KeyValue {
	return ConsensusTypeKey.String(name)
}

// ErrStatus is "status" attribute with value "ok" when err is nil, "err" otherwise.
func ErrStatus(err error) attribute.KeyValue {
	if err != nil {
		return Status("err")
	}
	return Status("ok")
}

// Status is used where outcome of the operation is a named state rather than an error (ie "InsufficientQuorum").
func Status(s string) attribute.KeyValue {
	return StatusKey.String(s)
}
