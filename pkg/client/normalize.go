package client

import "time"

// Edge reports node state with a different vocabulary than Stream.
// normalizeEdgeNode maps an Edge node object onto the unified Worker
// shape: connected->healthy, disconnected->unhealthy, fleet->group,
// lastSeen (ISO-8601) -> lastMsgTime (ms since epoch).
func normalizeEdgeNode(item map[string]any) Worker {
	w := Worker{
		ID:         asString(item, "id", "guid", "host"),
		Group:      asString(item, "fleet", "group"),
		CPUPercent: asFloat(item, "cpuPercent", "cpu_percent"),
		MemPercent: asFloat(item, "memPercent", "mem_percent"),
		Raw:        item,
	}

	switch asString(item, "status") {
	case "connected":
		w.Status = "healthy"
	case "disconnected":
		w.Status = "unhealthy"
	default:
		w.Status = asString(item, "status")
	}

	if seen := asString(item, "lastSeen"); seen != "" {
		if t, err := time.Parse(time.RFC3339, seen); err == nil {
			w.LastMsgTime = t.UnixMilli()
		}
	} else {
		w.LastMsgTime = int64(asFloat(item, "lastMsgTime"))
	}
	return w
}

// parseStreamWorker reads a Stream worker object. Metric units are
// preserved as reported.
func parseStreamWorker(item map[string]any) Worker {
	return Worker{
		ID:          asString(item, "id", "guid", "host"),
		Group:       asString(item, "group"),
		Status:      asString(item, "status"),
		CPUPercent:  asFloat(item, "cpuPercent", "cpu_percent"),
		MemPercent:  asFloat(item, "memPercent", "mem_percent"),
		LastMsgTime: int64(asFloat(item, "lastMsgTime")),
		Raw:         item,
	}
}
