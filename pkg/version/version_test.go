package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if info.Version != Version || info.Commit != Commit || info.Built != Built {
		t.Errorf("unexpected build info %+v", info)
	}
	if !strings.HasPrefix(info.String(), "relay version "+Version) {
		t.Errorf("unexpected string %q", info.String())
	}
	if UserAgent() != "wiki-relay/"+Version {
		t.Errorf("unexpected user agent %q", UserAgent())
	}
}
