package job

import (
	"fmt"
	"hash/fnv"
)

// ShardLabel hashes an item id to a stable small cardinality label (0-31)
// for use as a metrics dimension.
func ShardLabel(itemID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(itemID))
	return fmt.Sprintf("%d", h.Sum32()%32)
}
