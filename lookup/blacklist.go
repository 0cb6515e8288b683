package lookup

import (
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"breach-lookup/logging"
)

// Blacklist decides which entities are skipped before any network call.
// Exact entries compare case-sensitively; the regex is case-insensitive and
// only applies to domains.
type Blacklist struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	exact     map[string]struct{}
	regex     *regexp.Regexp
	prevList  string
	prevRegex string
}

func NewBlacklist(logger *zap.Logger) *Blacklist {
	return &Blacklist{logger: logging.OrNop(logger)}
}

// Configure rebuilds whichever filter changed since the last call. An empty
// string removes that filter.
func (b *Blacklist) Configure(opts Options) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if opts.DomainBlacklistRegex != b.prevRegex {
		b.prevRegex = opts.DomainBlacklistRegex
		if opts.DomainBlacklistRegex == "" {
			b.logger.Debug("removing domain blacklist regex filtering")
			b.regex = nil
		} else {
			re, err := regexp.Compile("(?i)" + opts.DomainBlacklistRegex)
			if err != nil {
				b.logger.Warn("invalid domain blacklist regex, filtering disabled",
					zap.String("domain_blacklist_regex", opts.DomainBlacklistRegex),
					zap.Error(err),
				)
				b.regex = nil
			} else {
				b.logger.Debug("modifying domain blacklist regex",
					zap.String("domain_blacklist_regex", opts.DomainBlacklistRegex))
				b.regex = re
			}
		}
	}

	if opts.Blacklist != b.prevList {
		b.prevList = opts.Blacklist
		if opts.Blacklist == "" {
			b.logger.Debug("removing blacklist filtering")
			b.exact = nil
		} else {
			b.logger.Debug("modifying blacklist", zap.String("blacklist", opts.Blacklist))
			parts := strings.Split(opts.Blacklist, ",")
			b.exact = make(map[string]struct{}, len(parts))
			for _, p := range parts {
				b.exact[strings.TrimSpace(p)] = struct{}{}
			}
		}
	}
}

func (b *Blacklist) IsBlacklisted(e Entity) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.exact[e.Value]; ok {
		return true
	}

	if e.domain() && b.regex != nil && b.regex.MatchString(e.Value) {
		b.logger.Debug("blocked blacklisted domain lookup", zap.String("domain", e.Value))
		return true
	}

	return false
}
