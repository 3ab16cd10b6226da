package types

import (
	"fmt"
	"math"
)

type (
	NodeType uint8

	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// BehavioralProfile holds metrics derived from observed node behaviour.
	// AnomalyScore belongs to the external anomaly detector, the core only passes it through.
	BehavioralProfile struct {
		ResponseTimeMean    float64 `json:"responseTimeMean" yaml:"responseTimeMean"`
		ResponseTimeStd     float64 `json:"responseTimeStd" yaml:"responseTimeStd"`
		TrustConsistency    float64 `json:"trustConsistency" yaml:"trustConsistency"`
		AnomalyScore        float64 `json:"anomalyScore" yaml:"anomalyScore"`
		QuantumEntanglement float64 `json:"quantumEntanglement" yaml:"quantumEntanglement"`
	}

	// SafetyEnvelope is the per node set of operating limits.
	SafetyEnvelope struct {
		MaxLatency             float64 `json:"maxLatency" yaml:"maxLatency"`
		MinTrust               float64 `json:"minTrust" yaml:"minTrust"`
		MaxComputeLoad         float64 `json:"maxComputeLoad" yaml:"maxComputeLoad"`
		QuantumSafetyThreshold float64 `json:"quantumSafetyThreshold" yaml:"quantumSafetyThreshold"`
		EntanglementRequired   float64 `json:"entanglementRequired" yaml:"entanglementRequired"`
	}

	/*
	Node is one physical or virtual participant of the network.

	TrustScore is the static trust of the node, QuantumTrustScore is the value
	produced by trust propagation. Both are kept in the [0, 1] range.
	IsAdversarial is evaluation-only ground truth, protocol code must not read it.
	*/
	Node struct {
		ID                string            `json:"id"`
		Type              NodeType          `json:"type"`
		ComputeCapacity   float64           `json:"computeCapacity"`
		NetworkLatency    float64           `json:"networkLatency"`
		Position          Position          `json:"position"`
		TrustScore        float64           `json:"trustScore"`
		QuantumTrustScore float64           `json:"quantumTrustScore"`
		SafetyCritical    bool              `json:"safetyCritical"`
		IsAdversarial     bool              `json:"isAdversarial"`
		Profile           BehavioralProfile `json:"behavioralProfile"`
		Envelope          SafetyEnvelope    `json:"safetyEnvelope"`
	}

	NodeOption func(*Node)
)

const (
	Robot NodeType = iota
	EdgeSensor
	EdgeComputer
	Cloud
)

// FeatureCount is the length of the vector returned by Node.Features.
const FeatureCount = 7

func (t NodeType) String() string {
	switch t {
	case Robot:
		return "robot"
	case EdgeSensor:
		return "edge_sensor"
	case EdgeComputer:
		return "edge_computer"
	case Cloud:
		return "cloud"
	default:
		return fmt.Sprintf("node_type(%d)", uint8(t))
	}
}

func DefaultSafetyEnvelope() SafetyEnvelope {
	return SafetyEnvelope{
		MaxLatency:             50.0,
		MinTrust:               0.6,
		MaxComputeLoad:         0.8,
		QuantumSafetyThreshold: 0.7,
		EntanglementRequired:   0.5,
	}
}

func DefaultBehavioralProfile(latency float64) BehavioralProfile {
	return BehavioralProfile{
		ResponseTimeMean:    latency,
		ResponseTimeStd:     latency * 0.1,
		TrustConsistency:    0.9,
		AnomalyScore:        0,
		QuantumEntanglement: 1.0,
	}
}

func WithSafetyCritical(critical bool) NodeOption {
	return func(n *Node) {
		n.SafetyCritical = critical
	}
}

func WithAdversarial(adversarial bool) NodeOption {
	return func(n *Node) {
		n.IsAdversarial = adversarial
	}
}

func WithBehavioralProfile(p BehavioralProfile) NodeOption {
	return func(n *Node) {
		n.Profile = p
	}
}

func WithSafetyEnvelope(e SafetyEnvelope) NodeOption {
	return func(n *Node) {
		n.Envelope = e
	}
}

/*
NewNode creates node record with trust clamped into [0, 1].
Behavioral profile and safety envelope get their defaults unless set by options,
quantum trust starts out equal to the static trust.
*/
func NewNode(id string, typ NodeType, compute, latency float64, pos Position, trust float64, opts ...NodeOption) *Node {
	n := &Node{
		ID:              id,
		Type:            typ,
		ComputeCapacity: compute,
		NetworkLatency:  latency,
		Position:        pos,
		TrustScore:      ClampTrust(trust),
		Profile:         DefaultBehavioralProfile(latency),
		Envelope:        DefaultSafetyEnvelope(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.QuantumTrustScore = n.TrustScore
	return n
}

func (n *Node) IsValid() error {
	if n == nil {
		return fmt.Errorf("node is nil")
	}
	if n.ID == "" {
		return fmt.Errorf("node id is empty")
	}
	if !(n.ComputeCapacity > 0) {
		return fmt.Errorf("node %s: compute capacity must be positive, got %v", n.ID, n.ComputeCapacity)
	}
	if !(n.NetworkLatency >= 0) {
		return fmt.Errorf("node %s: network latency must not be negative, got %v", n.ID, n.NetworkLatency)
	}
	if !isFinite(n.Position.X) || !isFinite(n.Position.Y) {
		return fmt.Errorf("node %s: position is not finite", n.ID)
	}
	return nil
}

// Clone returns deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}

/*
Features returns the feature vector consumed by external anomaly detection and
safety verification models:

	[quantum trust, trust, latency/100, compute/1000, entanglement, anomaly score, safety critical]
*/
func (n *Node) Features() [FeatureCount]float64 {
	critical := 0.0
	if n.SafetyCritical {
		critical = 1.0
	}
	return [FeatureCount]float64{
		n.QuantumTrustScore,
		n.TrustScore,
		n.NetworkLatency / 100.0,
		n.ComputeCapacity / 1000.0,
		n.Profile.QuantumEntanglement,
		n.Profile.AnomalyScore,
		critical,
	}
}

// ClampTrust forces v into the [0, 1] range, NaN becomes 0.
func ClampTrust(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
