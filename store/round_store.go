package store

import (
	"errors"
	"fmt"

	"github.com/iort-labs/qtrust/crypto"
	"github.com/iort-labs/qtrust/keyvaluedb"
	"github.com/iort-labs/qtrust/types"
)

const (
	roundPrefix = "round_" // append round number bytes
	trustPrefix = "trust_" // append topology version bytes

	shareCount = 3
)

var lastRoundKey = []byte("last_round")

var ErrCorruptRecord = errors.New("corrupt trust record")

type (
	/*
	RoundStore persists round results and snapshots of the propagated trust.
	Load methods return (nil, nil) when the item is not found.
	*/
	RoundStore struct {
		storage keyvaluedb.KeyValueDB
	}

	// TrustData is the part of the trust record covered by the record hash.
	TrustData struct {
		NodeID            string  `json:"nodeId"`
		TopologyVersion   uint64  `json:"topologyVersion"`
		TrustScore        float64 `json:"trustScore"`
		QuantumTrustScore float64 `json:"quantumTrustScore"`
		AnomalyScore      float64 `json:"anomalyScore"`
	}

	TrustRecord struct {
		TrustData
		Hash   string         `json:"hash"`
		Shares []crypto.Share `json:"shares"`
	}

	TrustSnapshot struct {
		TopologyVersion uint64        `json:"topologyVersion"`
		Records         []TrustRecord `json:"records"`
	}
)

func NewRoundStore(db keyvaluedb.KeyValueDB) (*RoundStore, error) {
	if db == nil {
		return nil, errors.New("storage is nil")
	}
	return &RoundStore{storage: db}, nil
}

// SaveRound stores the round result and advances the last round pointer.
func (x *RoundStore) SaveRound(res *types.RoundResult) (rErr error) {
	if res == nil {
		return errors.New("round result is nil")
	}
	var last uint64
	if _, err := x.storage.Read(lastRoundKey, &last); err != nil {
		return fmt.Errorf("reading last round number: %w", err)
	}

	tx, err := x.storage.StartTx()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if rErr != nil {
			rErr = errors.Join(rErr, tx.Rollback())
		}
	}()

	if err := tx.Write(keyvaluedb.Key(roundPrefix, res.Round), res); err != nil {
		return fmt.Errorf("failed to store round %d: %w", res.Round, err)
	}
	if res.Round >= last {
		if err := tx.Write(lastRoundKey, res.Round); err != nil {
			return fmt.Errorf("failed to store last round number: %w", err)
		}
	}
	return tx.Commit()
}

func (x *RoundStore) LoadRound(round uint64) (*types.RoundResult, error) {
	var res types.RoundResult
	ok, err := x.storage.Read(keyvaluedb.Key(roundPrefix, round), &res)
	if err != nil {
		return nil, fmt.Errorf("failed to load round %d: %w", round, err)
	}
	if !ok {
		return nil, nil
	}
	return &res, nil
}

// LastRound returns the result of the round with the greatest number.
func (x *RoundStore) LastRound() (*types.RoundResult, error) {
	var last uint64
	ok, err := x.storage.Read(lastRoundKey, &last)
	if err != nil {
		return nil, fmt.Errorf("reading last round number: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return x.LoadRound(last)
}

// Rounds returns stored round results starting from round "from", in round order.
func (x *RoundStore) Rounds(from uint64) (_ []*types.RoundResult, rErr error) {
	it := x.storage.Find(keyvaluedb.Key(roundPrefix, from))
	defer func() { rErr = errors.Join(rErr, it.Close()) }()

	var rounds []*types.RoundResult
	for ; it.Valid(); it.Next() {
		if _, ok := keyvaluedb.KeyNumber(roundPrefix, it.Key()); !ok {
			break
		}
		res := &types.RoundResult{}
		if err := it.Value(res); err != nil {
			return nil, fmt.Errorf("reading round result: %w", err)
		}
		rounds = append(rounds, res)
	}
	return rounds, nil
}

/*
SaveTrustSnapshot stores trust of the nodes computed for the given topology
version. Every record carries hash and redundancy shares of its data.
*/
func (x *RoundStore) SaveTrustSnapshot(topologyVersion uint64, nodes []*types.Node) error {
	snap := TrustSnapshot{
		TopologyVersion: topologyVersion,
		Records:         make([]TrustRecord, len(nodes)),
	}
	for i, n := range nodes {
		rec, err := newTrustRecord(topologyVersion, n)
		if err != nil {
			return fmt.Errorf("creating trust record of %s: %w", n.ID, err)
		}
		snap.Records[i] = rec
	}
	if err := x.storage.Write(keyvaluedb.Key(trustPrefix, topologyVersion), &snap); err != nil {
		return fmt.Errorf("failed to store trust snapshot: %w", err)
	}
	return nil
}

/*
LoadTrustSnapshot loads trust snapshot of the given topology version and
verifies the records, ErrCorruptRecord is returned when verification fails.
*/
func (x *RoundStore) LoadTrustSnapshot(topologyVersion uint64) (*TrustSnapshot, error) {
	var snap TrustSnapshot
	ok, err := x.storage.Read(keyvaluedb.Key(trustPrefix, topologyVersion), &snap)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust snapshot %d: %w", topologyVersion, err)
	}
	if !ok {
		return nil, nil
	}
	for i := range snap.Records {
		if err := snap.Records[i].Verify(); err != nil {
			return nil, fmt.Errorf("record %d of trust snapshot %d: %w", i, topologyVersion, err)
		}
	}
	return &snap, nil
}

func newTrustRecord(topologyVersion uint64, n *types.Node) (TrustRecord, error) {
	data := TrustData{
		NodeID:            n.ID,
		TopologyVersion:   topologyVersion,
		TrustScore:        n.TrustScore,
		QuantumTrustScore: n.QuantumTrustScore,
		AnomalyScore:      n.Profile.AnomalyScore,
	}
	h, err := crypto.RecordHash(n.ID, data)
	if err != nil {
		return TrustRecord{}, err
	}
	fp, err := crypto.TrustFingerprint(n.ID, data)
	if err != nil {
		return TrustRecord{}, err
	}
	shares, err := crypto.Shares(n.ID, fp, shareCount)
	if err != nil {
		return TrustRecord{}, err
	}
	return TrustRecord{TrustData: data, Hash: h, Shares: shares}, nil
}

// Verify checks that hash and shares of the record match its data.
func (r *TrustRecord) Verify() error {
	h, err := crypto.RecordHash(r.NodeID, r.TrustData)
	if err != nil {
		return err
	}
	if h != r.Hash {
		return fmt.Errorf("%w: hash mismatch for node %s", ErrCorruptRecord, r.NodeID)
	}
	fp, err := crypto.TrustFingerprint(r.NodeID, r.TrustData)
	if err != nil {
		return err
	}
	if !crypto.VerifyShares(r.NodeID, fp, r.Shares) {
		return fmt.Errorf("%w: not enough valid shares for node %s", ErrCorruptRecord, r.NodeID)
	}
	return nil
}
