package configstore

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/openlio/liocfg/pkg/config"
)

// Verify runs non-mutating pre-flight checks on the current tree and
// returns the problems found, grouped by category. An empty map means
// the configuration looks applicable.
func (s *Store) Verify() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur := s.current()
	problems := make(map[string][]string)
	add := func(category, msg string) {
		problems[category] = append(problems[category], msg)
	}

	// Device paths of storage disks must exist on this host.
	paths, _ := cur.Search([][]string{
		{"storage", ".*"}, {"disk", ".*"}, {"path", ".*"},
	}, nil)
	for _, attr := range paths {
		path := attr.Key()[1]
		if path == config.NoValue {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			add("missing paths", fmt.Sprintf("%s: %s", attr.Parent().PathStr(), path))
		}
	}

	// LUN backend references must resolve to exactly one storage disk.
	backends, _ := cur.Search([][]string{
		{"fabric", ".*"}, {"target", ".*"}, {"tpgt", ".*"},
		{"lun", ".*"}, {"backend", ".*"},
	}, nil)
	for _, attr := range backends {
		value := attr.Key()[1]
		if value == config.NoValue {
			continue
		}
		plugin, disk, ok := strings.Cut(value, ":")
		if !ok {
			continue
		}
		matches, err := cur.Search([][]string{
			{"storage", regexp.QuoteMeta(plugin)},
			{"disk", regexp.QuoteMeta(disk)},
		}, nil)
		switch {
		case err == nil && len(matches) == 0:
			add("missing storage objects",
				fmt.Sprintf("%s: no storage %s disk %s", attr.Parent().PathStr(), plugin, disk))
		case err == nil && len(matches) > 1:
			add("ambiguous storage objects",
				fmt.Sprintf("%s: %d matches for storage %s disk %s", attr.Parent().PathStr(), len(matches), plugin, disk))
		}
	}

	// Required attributes the configuration never supplied.
	missing := cur.Walk(config.FilterChain(config.FilterOnlyRequired, config.FilterOnlyMissing))
	for _, attr := range missing {
		add("unset required attributes",
			fmt.Sprintf("%s %s", attr.Parent().PathStr(), attr.Key()[0]))
	}
	return problems
}
