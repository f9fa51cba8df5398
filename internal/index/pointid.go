package index

import "github.com/google/uuid"

// pointNamespace seeds the name-based UUIDs derived from entity ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("hiresync:index:point"))

// PointID maps an entity id to a Qdrant point id. Qdrant only accepts UUIDs
// and unsigned integers, so ids that are not already UUIDs are turned into a
// deterministic version 5 UUID. The same entity id always yields the same
// point id, which is what makes repeated upserts overwrite.
func PointID(entityID string) string {
	if u, err := uuid.Parse(entityID); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(pointNamespace, []byte(entityID)).String()
}
