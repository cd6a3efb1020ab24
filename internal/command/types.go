// Package command defines the tagged-union command algebra of the
// replicated pipeline: every write (and every read that must be
// serialized through the same dispatch table) is a Command value that
// round-trips through canonical JSON with a "type" discriminator.
package command

import (
	"time"
)

// Revision identifies a point in a repository's history. Positive values
// are absolute (1 = initial commit); non-positive values are
// relative-from-head (0 = HEAD, -1 = HEAD^, ...) and must be normalized
// against a repository before use.
type Revision struct {
	Major int64 `json:"major"`
}

// Head is the relative revision meaning "current HEAD".
var Head = Revision{Major: 0}

// IsRelative reports whether r must be normalized before use.
func (r Revision) IsRelative() bool {
	return r.Major <= 0
}

// SystemAuthorName is the distinguished author used for internal commits.
const SystemAuthorName = "System"

// Author identifies who made a change.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SystemAuthor is the designated author for server-initiated commands
// (replication catch-up, sweepers, mirroring) that have no human author.
var SystemAuthor = Author{Name: SystemAuthorName, Email: "system@localhost"}

// Markup names the rendering hint for a commit's detail field.
type Markup string

const (
	MarkupPlaintext Markup = "PLAINTEXT"
	MarkupMarkdown  Markup = "MARKDOWN"
)

// Header is embedded in every Command and carries the fields common to
// the whole algebra: the wire discriminator is derived from the concrete
// Go type by the codec, not stored redundantly on Header itself.
type Header struct {
	Timestamp int64  `json:"timestamp"`
	Author    Author `json:"author"`
}

// Normalize fills in Timestamp/Author when the wire payload omitted them,
// per the backward-compatibility rule in spec.md §6: absent timestamp/
// author default to now()/SYSTEM.
func (h *Header) Normalize(now func() time.Time) {
	if h.Timestamp == 0 {
		h.Timestamp = now().UnixMilli()
	}

	if h.Author == (Author{}) {
		h.Author = SystemAuthor
	}
}

// Command is the sealed interface implemented by every variant below.
// CommandType returns the wire discriminator used by the codec; it is never
// computed from reflection so that renaming a Go type never changes the
// wire format.
type Command interface {
	CommandType() string
	CommandHeader() *Header
}

// Kind returns the Command's wire discriminator, equivalent to calling
// CommandType directly; it exists so call sites that already have a
// generic Command value read naturally.
func Kind(c Command) string { return c.CommandType() }

// --- Root commands --------------------------------------------------------

type CreateProject struct {
	Header
	ProjectName string `json:"projectName"`
}

func (c *CreateProject) CommandType() string { return "CREATE_PROJECT" }
func (c *CreateProject) CommandHeader() *Header { return &c.Header }

type RemoveProject struct {
	Header
	ProjectName string `json:"projectName"`
}

func (c *RemoveProject) CommandType() string { return "REMOVE_PROJECT" }
func (c *RemoveProject) CommandHeader() *Header { return &c.Header }

type UnremoveProject struct {
	Header
	ProjectName string `json:"projectName"`
}

func (c *UnremoveProject) CommandType() string { return "UNREMOVE_PROJECT" }
func (c *UnremoveProject) CommandHeader() *Header { return &c.Header }

type PurgeProject struct {
	Header
	ProjectName string `json:"projectName"`
}

func (c *PurgeProject) CommandType() string { return "PURGE_PROJECT" }
func (c *PurgeProject) CommandHeader() *Header { return &c.Header }

// --- Project-scoped --------------------------------------------------------

// ResetMetaRepository is deprecated: the codec still decodes it (see
// DESIGN.md), but the executor (C4) rejects it with KindDeprecated.
type ResetMetaRepository struct {
	Header
	ProjectName string `json:"projectName"`
}

func (c *ResetMetaRepository) CommandType() string { return "RESET_META_REPOSITORY" }
func (c *ResetMetaRepository) CommandHeader() *Header { return &c.Header }

// --- Repository-scoped -----------------------------------------------------

type CreateRepository struct {
	Header
	ProjectName    string `json:"projectName"`
	RepositoryName string `json:"repositoryName"`
}

func (c *CreateRepository) CommandType() string { return "CREATE_REPOSITORY" }
func (c *CreateRepository) CommandHeader() *Header { return &c.Header }

type RemoveRepository struct {
	Header
	ProjectName    string `json:"projectName"`
	RepositoryName string `json:"repositoryName"`
}

func (c *RemoveRepository) CommandType() string { return "REMOVE_REPOSITORY" }
func (c *RemoveRepository) CommandHeader() *Header { return &c.Header }

type UnremoveRepository struct {
	Header
	ProjectName    string `json:"projectName"`
	RepositoryName string `json:"repositoryName"`
}

func (c *UnremoveRepository) CommandType() string { return "UNREMOVE_REPOSITORY" }
func (c *UnremoveRepository) CommandHeader() *Header { return &c.Header }

type PurgeRepository struct {
	Header
	ProjectName    string `json:"projectName"`
	RepositoryName string `json:"repositoryName"`
}

func (c *PurgeRepository) CommandType() string { return "PURGE_REPOSITORY" }
func (c *PurgeRepository) CommandHeader() *Header { return &c.Header }

// RollingRepositoryRetention bounds how long / how many commits the
// primary tier of a rolling repository keeps before archiving to the
// secondary tier.
type RollingRepositoryRetention struct {
	MinRetentionCommits int64 `json:"minRetentionCommits"`
	MinRetentionDays    int64 `json:"minRetentionDays"`
}

type CreateRollingRepository struct {
	Header
	ProjectName     string                     `json:"projectName"`
	RepositoryName  string                     `json:"repositoryName"`
	InitialRevision Revision                   `json:"initialRevision"`
	Retention       RollingRepositoryRetention `json:"retention"`
}

func (c *CreateRollingRepository) CommandType() string { return "CREATE_ROLLING_REPOSITORY" }
func (c *CreateRollingRepository) CommandHeader() *Header { return &c.Header }

// WdekDetails carries the wrapped data-encryption key material. The key
// wrapping/unwrapping primitives are out of scope (spec.md §1); only the
// request to rotate is modeled.
type WdekDetails struct {
	KeyID          string `json:"keyId"`
	WrappedKeyData []byte `json:"wrappedKeyData"`
}

type RotateWdek struct {
	Header
	ProjectName    string      `json:"projectName"`
	RepositoryName string      `json:"repositoryName"`
	Wdek           WdekDetails `json:"wdek"`
}

func (c *RotateWdek) CommandType() string { return "ROTATE_WDEK" }
func (c *RotateWdek) CommandHeader() *Header { return &c.Header }

// ReplicationStatus is the replica-local view of a repository's
// replication health, reported via UpdateRepositoryStatus.
type ReplicationStatus string

const (
	ReplicationStatusActive ReplicationStatus = "ACTIVE"
	ReplicationStatusStale  ReplicationStatus = "STALE"
)

type UpdateRepositoryStatus struct {
	Header
	ProjectName       string            `json:"projectName"`
	RepositoryName    string            `json:"repositoryName"`
	ReplicationStatus ReplicationStatus `json:"replicationStatus"`
}

func (c *UpdateRepositoryStatus) CommandType() string { return "UPDATE_REPOSITORY_STATUS" }
func (c *UpdateRepositoryStatus) CommandHeader() *Header { return &c.Header }

// --- Push family -------------------------------------------------------

type pushCommon struct {
	Header
	ProjectName    string   `json:"projectName"`
	RepositoryName string   `json:"repositoryName"`
	BaseRevision   Revision `json:"baseRevision"`
	Summary        string   `json:"summary"`
	Detail         string   `json:"detail"`
	Markup         Markup   `json:"markup"`
	Changes        []Change `json:"changes"`
}

// NormalizingPush is the ordinary client push: the server normalizes
// Changes against HEAD before applying and returns the normalized set.
type NormalizingPush struct {
	pushCommon
}

func (c *NormalizingPush) CommandType() string { return "PUSH" }
func (c *NormalizingPush) CommandHeader() *Header { return &c.pushCommon.Header }

// PushFields is the push payload shared by NormalizingPush and PushAsIs,
// exposed so callers outside this package can construct either variant
// without reaching into the unexported pushCommon embedding.
type PushFields struct {
	Header
	ProjectName    string
	RepositoryName string
	BaseRevision   Revision
	Summary        string
	Detail         string
	Markup         Markup
	Changes        []Change
}

func (f PushFields) toCommon() pushCommon {
	return pushCommon{
		Header:         f.Header,
		ProjectName:    f.ProjectName,
		RepositoryName: f.RepositoryName,
		BaseRevision:   f.BaseRevision,
		Summary:        f.Summary,
		Detail:         f.Detail,
		Markup:         f.Markup,
		Changes:        f.Changes,
	}
}

// NewNormalizingPush builds a NormalizingPush from PushFields.
func NewNormalizingPush(f PushFields) *NormalizingPush {
	return &NormalizingPush{pushCommon: f.toCommon()}
}

// NewPushAsIs builds a PushAsIs from PushFields.
func NewPushAsIs(f PushFields) *PushAsIs {
	return &PushAsIs{pushCommon: f.toCommon()}
}

// PushAsIs applies Changes verbatim, with no re-normalization; used to
// replay an already-normalized commit during replication/mirroring.
type PushAsIs struct {
	pushCommon
}

func (c *PushAsIs) CommandType() string { return "PUSH_AS_IS" }
func (c *PushAsIs) CommandHeader() *Header { return &c.pushCommon.Header }

// ContentTransformer is an opaque, server-side function name plus
// parameters; the executor resolves it to a registered transform (the
// transform registry itself lives in the storage layer, out of scope
// here per spec.md §1).
type ContentTransformer struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

type Transform struct {
	Header
	ProjectName    string             `json:"projectName"`
	RepositoryName string             `json:"repositoryName"`
	BaseRevision   Revision           `json:"baseRevision"`
	Summary        string             `json:"summary"`
	Detail         string             `json:"detail"`
	Markup         Markup             `json:"markup"`
	Transformer    ContentTransformer `json:"transformer"`
}

func (c *Transform) CommandType() string { return "TRANSFORM" }
func (c *Transform) CommandHeader() *Header { return &c.Header }

// --- Session -------------------------------------------------------------

type Session struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	CreationTime   int64  `json:"creationTime"`
	ExpirationTime int64  `json:"expirationTime"`
	CsrfToken      string `json:"csrfToken,omitempty"`
}

type CreateSession struct {
	Header
	Session Session `json:"session"`
}

func (c *CreateSession) CommandType() string { return "CREATE_SESSION" }
func (c *CreateSession) CommandHeader() *Header { return &c.Header }

type RemoveSession struct {
	Header
	SessionID string `json:"sessionId"`
}

func (c *RemoveSession) CommandType() string { return "REMOVE_SESSION" }
func (c *RemoveSession) CommandHeader() *Header { return &c.Header }

// MasterKey wraps the key material used to sign/validate session CSRF
// tokens cluster-wide; replicated so every replica can validate tokens
// minted by any other replica.
type MasterKey struct {
	KeyID   string `json:"keyId"`
	Key     []byte `json:"key"`
	Created int64  `json:"created"`
}

type CreateSessionMasterKey struct {
	Header
	MasterKey MasterKey `json:"masterKey"`
}

func (c *CreateSessionMasterKey) CommandType() string { return "CREATE_SESSION_MASTER_KEY" }
func (c *CreateSessionMasterKey) CommandHeader() *Header { return &c.Header }

// --- Token -----------------------------------------------------------------

// Token is a long-lived application credential (spec.md §3 Session /
// Token); unlike a Session it never auto-expires, only deactivates or is
// deleted outright.
type Token struct {
	AppID         string `json:"appId"`
	Secret        string `json:"secret"`
	IsSystemAdmin bool   `json:"isSystemAdmin"`
	Creation      int64  `json:"creation"`
	Deactivation  int64  `json:"deactivation,omitempty"`
	Deletion      int64  `json:"deletion,omitempty"`
}

type CreateToken struct {
	Header
	Token Token `json:"token"`
}

func (c *CreateToken) CommandType() string   { return "CREATE_TOKEN" }
func (c *CreateToken) CommandHeader() *Header { return &c.Header }

// DeactivateToken marks a token unusable without deleting its record, so
// audit history of who created/used it survives.
type DeactivateToken struct {
	Header
	AppID string `json:"appId"`
}

func (c *DeactivateToken) CommandType() string   { return "DEACTIVATE_TOKEN" }
func (c *DeactivateToken) CommandHeader() *Header { return &c.Header }

type DeleteToken struct {
	Header
	AppID string `json:"appId"`
}

func (c *DeleteToken) CommandType() string   { return "DELETE_TOKEN" }
func (c *DeleteToken) CommandHeader() *Header { return &c.Header }

// --- Administrative (bypass read-only gating) -----------------------------

type UpdateServerStatus struct {
	Header
	Writable    *bool `json:"writable,omitempty"`
	Replicating *bool `json:"replicating,omitempty"`
}

func (c *UpdateServerStatus) CommandType() string { return "UPDATE_SERVER_STATUS" }
func (c *UpdateServerStatus) CommandHeader() *Header { return &c.Header }

// ForcePush wraps any write command so it is admitted even when the
// replica is non-writable. Unwrapping is idempotent: ForcePush-of-
// ForcePush behaves as a single ForcePush of the innermost command.
type ForcePush struct {
	Header
	Inner Command `json:"inner"`
}

func (c *ForcePush) CommandType() string { return "FORCE_PUSH" }
func (c *ForcePush) CommandHeader() *Header { return &c.Header }

// Unwrap returns the innermost non-ForcePush command.
func (c *ForcePush) Unwrap() Command {
	inner := c.Inner
	for {
		fp, ok := inner.(*ForcePush)
		if !ok {
			return inner
		}

		inner = fp.Inner
	}
}

// IsAdministrative reports whether c bypasses the read-only gate in C4
// (spec.md §4.4 step 2): ForcePush and UpdateServerStatus always do.
func IsAdministrative(c Command) bool {
	switch c.(type) {
	case *ForcePush, *UpdateServerStatus:
		return true
	default:
		return false
	}
}

