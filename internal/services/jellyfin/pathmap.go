package jellyfin

import (
	"strings"
)

type PathMapping struct {
	Local  string
	Server string
}

// PathMap rewrites dashboard paths into the media server's mount namespace.
// The longest matching prefix wins.
type PathMap []PathMapping

// ParsePathMap reads "local=server,local2=server2".
func ParsePathMap(raw string) PathMap {
	var m PathMap
	for _, part := range strings.Split(raw, ",") {
		local, server, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		local = strings.TrimRight(strings.TrimSpace(local), "/")
		server = strings.TrimRight(strings.TrimSpace(server), "/")
		if local == "" {
			continue
		}
		m = append(m, PathMapping{Local: local, Server: server})
	}
	return m
}

func (m PathMap) ToServer(p string) string {
	best := -1
	for i, pm := range m {
		if p != pm.Local && !strings.HasPrefix(p, pm.Local+"/") {
			continue
		}
		if best < 0 || len(pm.Local) > len(m[best].Local) {
			best = i
		}
	}
	if best < 0 {
		return p
	}
	return m[best].Server + strings.TrimPrefix(p, m[best].Local)
}
