package models

// MessageKind tags a wire protocol message. The set of kinds is closed:
// a message with any other tag is a protocol error.
type MessageKind string

const (
	KindHello      MessageKind = "hello"
	KindWelcome    MessageKind = "welcome"
	KindBye        MessageKind = "bye"
	KindKeepAlive  MessageKind = "keep-alive"
	KindAsk        MessageKind = "ask"
	KindDidAsk     MessageKind = "did-ask"
	KindPull       MessageKind = "pull"
	KindDidPull    MessageKind = "did-pull"
	KindPush       MessageKind = "push"
	KindUpdate     MessageKind = "update"
	KindDeviceInfo MessageKind = "device-info"
)

// Message is one wire protocol message exchanged between a sync engine and
// its remote host. Each concrete type corresponds to exactly one kind;
// handlers dispatch with a type switch and treat any other implementation
// as an unknown message.
type Message interface {
	Kind() MessageKind
}

// Hello opens a session. SecretHash is a digest of the shared secret, never
// the secret itself, so the remote can check compatibility without learning
// the secret.
type Hello struct {
	SpaceID    string `json:"space_id"`
	InstanceID string `json:"instance_id"`
	SecretHash string `json:"secret_hash"`
}

// Welcome is the remote's handshake reply carrying its own instance id.
type Welcome struct {
	InstanceID string `json:"instance_id"`
}

// Bye announces session termination. A non-empty Reason marks a forced
// disconnect and is surfaced as an error by the receiving engine.
type Bye struct {
	Reason string `json:"reason,omitempty"`
}

// KeepAlive is a heartbeat. Engines accept and otherwise ignore it.
type KeepAlive struct{}

// Ask requests the remote's view of what is new past Pos. MaxLocalID is the
// sender's highest local blob position.
type Ask struct {
	Pos        int64 `json:"pos"`
	MaxLocalID int64 `json:"max_local_id"`
}

// DidAsk answers an Ask. Pos must echo the cursor the Ask carried. MaxPos
// is the remote's highest position, LastPos the point below which the
// remote already has everything local. Items is an ascending list of blob
// references newer than Pos.
type DidAsk struct {
	Pos     int64     `json:"pos"`
	MaxPos  int64     `json:"max_pos"`
	LastPos int64     `json:"last_pos"`
	Items   []BlobRef `json:"items"`
}

// Pull requests the payloads of Items, in order.
type Pull struct {
	Items []BlobRef `json:"items"`
}

// DidPull carries one pulled blob, or a nil Blob as the batch terminator.
type DidPull struct {
	Blob *Blob `json:"blob"`
}

// Terminator reports whether this DidPull ends a pull batch.
func (m DidPull) Terminator() bool { return m.Blob == nil }

// Push offers blobs appended after Pos that the remote is not known to
// have. The remote answers with a Pull for the items it wants.
type Push struct {
	Pos   int64     `json:"pos"`
	Items []BlobRef `json:"items"`
}

// Update informs the peer that the sender's log now extends to Pos.
type Update struct {
	Pos int64 `json:"pos"`
}

// DeviceInfo carries optional device metadata for the remote's bookkeeping.
type DeviceInfo struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

func (Hello) Kind() MessageKind      { return KindHello }
func (Welcome) Kind() MessageKind    { return KindWelcome }
func (Bye) Kind() MessageKind        { return KindBye }
func (KeepAlive) Kind() MessageKind  { return KindKeepAlive }
func (Ask) Kind() MessageKind        { return KindAsk }
func (DidAsk) Kind() MessageKind     { return KindDidAsk }
func (Pull) Kind() MessageKind       { return KindPull }
func (DidPull) Kind() MessageKind    { return KindDidPull }
func (Push) Kind() MessageKind       { return KindPush }
func (Update) Kind() MessageKind     { return KindUpdate }
func (DeviceInfo) Kind() MessageKind { return KindDeviceInfo }
