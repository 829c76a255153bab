// Package wire defines the request/response shapes of the external
// service surface spec §6 describes "only at the shape level": a thin set
// of plain, JSON-tagged structs with no transport of their own. Nothing in
// this package dials a socket or frames a message — that is explicitly
// out of scope per spec §1 ("The RPC surface ... specified only at the
// shape level").
package wire

import (
	"time"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/filter"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/fusion"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/namespace"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/vector"
)

// UpsertRequest is the wire shape of a single Upsert call.
type UpsertRequest struct {
	ID       string          `json:"id"`
	Vector   vector.Vector   `json:"vector"`
	Metadata record.Metadata `json:"metadata,omitempty"`
	TTLSecs  int64           `json:"ttl_secs,omitempty"`
}

// BatchUpsertRequest carries many UpsertRequest entries in one call, per
// spec §6's BatchUpsert.
type BatchUpsertRequest struct {
	Items []UpsertRequest `json:"items"`
}

// BatchOpRequest is one entry of a BatchExecute call; Kind names which of
// Vector/Metadata/TTLSecs are meaningful, mirroring pkg/collection.Op.
type BatchOpRequest struct {
	Kind     string          `json:"kind"`
	ID       string          `json:"id"`
	Vector   vector.Vector   `json:"vector,omitempty"`
	Metadata record.Metadata `json:"metadata,omitempty"`
	TTLSecs  int64           `json:"ttl_secs,omitempty"`
}

// BatchExecuteRequest is the wire shape of spec §6's BatchExecute.
type BatchExecuteRequest struct {
	Ops []BatchOpRequest `json:"ops"`
}

// BatchErrorEntry reports one failed operation within a BatchResponse.
type BatchErrorEntry struct {
	Index  int    `json:"index"`
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

// BatchResponse is the wire shape of a BatchExecute result, per spec
// §4.11 ("{ succeeded, failed, errors[{index, op, reason}], duration }").
type BatchResponse struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    []BatchErrorEntry `json:"errors,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

// QueryRequest is the wire shape of spec §6's Query object:
// `{ vector, k, filter?, ef_search?, deadline? }`.
type QueryRequest struct {
	Vector    vector.Vector `json:"vector"`
	K         int           `json:"k"`
	Filter    *filter.Expr  `json:"filter,omitempty"`
	EfSearch  int           `json:"ef_search,omitempty"`
	DeadlineMs int64        `json:"deadline_ms,omitempty"`
}

// HybridQueryRequest adds hybrid-search fields on top of QueryRequest, per
// spec §6 ("Hybrid adds { keywords|sparse_vector, alpha, fusion, explain? }").
type HybridQueryRequest struct {
	QueryRequest
	Keywords string        `json:"keywords,omitempty"`
	Alpha    float64       `json:"alpha"`
	Fusion   fusion.Policy `json:"fusion"`
	Explain  bool          `json:"explain,omitempty"`
}

// ResultEntry is the wire shape of spec §6's Result object:
// `{ id, score, metadata, explanation? }`.
type ResultEntry struct {
	ID          string              `json:"id"`
	Score       float32             `json:"score"`
	Metadata    record.Metadata     `json:"metadata,omitempty"`
	Explanation *fusion.Explanation `json:"explanation,omitempty"`
}

// QueryResponse wraps the ranked result list a Query/HybridQuery/
// QueryExplain call returns.
type QueryResponse struct {
	Results []ResultEntry `json:"results"`
}

// QueryEstimateResponse is the wire shape of spec §4.10's EstimateQuery
// output.
type QueryEstimateResponse struct {
	Valid                  bool     `json:"valid"`
	Errors                 []string `json:"errors,omitempty"`
	EstimatedDistanceCalcs int64    `json:"estimated_distance_calcs"`
	EstimatedNodesVisited  int64    `json:"estimated_nodes_visited"`
	WillOverfetch          bool     `json:"will_overfetch"`
	Cost                   float64  `json:"cost"`
	EstimatedDurationMs    float64  `json:"estimated_duration_ms"`
	Recommendations        []string `json:"recommendations,omitempty"`
}

// SnapshotRequest names a snapshot for CreateSnapshot/RestoreSnapshot.
type SnapshotRequest struct {
	Name string `json:"name"`
}

// SnapshotListResponse is ListSnapshots' wire shape.
type SnapshotListResponse struct {
	Names []string `json:"names"`
}

// StatsResponse is GetStats' wire shape for a single collection.
type StatsResponse struct {
	Total          int                    `json:"total"`
	Live           int                    `json:"live"`
	Deleted        int                    `json:"deleted"`
	Dimension      int                    `json:"dimension"`
	GraphDiagnostics map[string]interface{} `json:"graph_diagnostics,omitempty"`
}

// NamespaceCreateRequest is the wire shape of the namespace-admin Create
// call, per spec §6.
type NamespaceCreateRequest struct {
	ID        string           `json:"id"`
	Dimension int              `json:"dimension"`
	Metric    vector.Metric    `json:"metric"`
	Quota     namespace.Quota  `json:"quota"`
}

// NamespaceUpdateQuotasRequest is the wire shape of UpdateQuotas.
type NamespaceUpdateQuotasRequest struct {
	ID    string          `json:"id"`
	Quota namespace.Quota `json:"quota"`
}

// NamespaceUpdateStatusRequest is the wire shape of UpdateStatus.
type NamespaceUpdateStatusRequest struct {
	ID     string            `json:"id"`
	Status namespace.Status  `json:"status"`
}

// NamespaceInfo is one entry of a namespace List/Get response.
type NamespaceInfo struct {
	ID        string          `json:"id"`
	Status    namespace.Status `json:"status"`
	Quota     namespace.Quota `json:"quota"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NamespaceStatsResponse is the wire shape of the namespace-admin GetStats
// call, per spec §4.9 ("Aggregate statistics are sums across active
// namespaces").
type NamespaceStatsResponse struct {
	NamespaceCount int `json:"namespace_count"`
	TotalRecords   int `json:"total_records"`
	LiveRecords    int `json:"live_records"`
	DeletedRecords int `json:"deleted_records"`
}
