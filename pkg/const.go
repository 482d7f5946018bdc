package pkg

const (
	HeaderTraceId string = "X-Trace-Id"
)

const (
	TraceId string = "trace_id"
)

// KeyPrefix is prepended to every transaction id when stored, so each
// identifier owns exactly one slot per partition.
const KeyPrefix string = "transaction:"

// Partition names the two durable record sets.
type Partition string

const (
	PartitionAccepted Partition = "accepted"
	PartitionRejected Partition = "rejected"
)
