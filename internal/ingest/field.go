package ingest

// Role is the handling strategy for one multipart field.
type Role int

const (
	RoleUnknown Role = iota
	RoleMetadata
	RoleAvatar
	RolePostImage
)

// Field names accepted on the wire.
const (
	FieldData   = "data"
	FieldAvatar = "avatar"
	FieldImage  = "image"
)

// Classify maps a declared field name to its Role.
func Classify(name string) Role {
	switch name {
	case FieldData:
		return RoleMetadata
	case FieldAvatar:
		return RoleAvatar
	case FieldImage:
		return RolePostImage
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleMetadata:
		return FieldData
	case RoleAvatar:
		return FieldAvatar
	case RolePostImage:
		return FieldImage
	default:
		return "unknown"
	}
}
