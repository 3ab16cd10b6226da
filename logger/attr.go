package logger

import "log/slog"

/*
Keys of the attributes shared by multiple packages. Use the constructor funcs
below rather than the keys directly, package specific attributes belong to
the package.
*/
const (
	NodeIDKey  = "node_id"
	ModuleKey  = "module"
	ErrorKey   = "err"
	RoundKey   = "round"
	VersionKey = "registry_version"
	DataKey    = "data"
)

/*
NodeID attributes the record to a network node. When logging many records
about the same node create a sub-logger:

	log := log.With(logger.NodeID(n.ID))
*/
func NodeID(id string) slog.Attr {
	return slog.String(NodeIDKey, id)
}

// Module names the component producing the record.
func Module(name string) slog.Attr {
	return slog.String(ModuleKey, name)
}

func Error(err error) slog.Attr {
	return slog.Any(ErrorKey, err)
}

// Round is the consensus round number.
func Round(round uint64) slog.Attr {
	return slog.Uint64(RoundKey, round)
}

// Version is the node registry version the record relates to.
func Version(v uint64) slog.Attr {
	return slog.Uint64(VersionKey, v)
}

/*
Data attaches a structured value (ie round result) to the record. In text
and console formats it is rendered as JSON, in ECS format it is nested under
its type name so that different types do not clash in the index.

Don't use slog.GroupValue or anonymous types as data.
*/
func Data(d any) slog.Attr {
	return slog.Any(DataKey, d)
}
