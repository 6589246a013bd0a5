package k8s

import "testing"

func TestSelectorClassify(t *testing.T) {
	cases := []struct {
		name     string
		selector Selector
		want     Scope
		wantErr  bool
	}{
		{"cluster overview", Selector{Kind: "cluster"}, ScopeCluster, false},
		{"cluster kind is case insensitive", Selector{Kind: "Cluster"}, ScopeCluster, false},
		{"namespace overview", Selector{Namespace: "prod", Kind: "namespace"}, ScopeNamespace, false},
		{"specific resource", Selector{Namespace: "prod", Kind: "Deployment", Name: "api", APIVersion: "apps/v1"}, ScopeResource, false},
		{"cluster scoped resource", Selector{Kind: "Node", Name: "worker-1", APIVersion: "v1"}, ScopeResource, false},
		{"empty selector", Selector{}, ScopeInvalid, true},
		{"kind without api version", Selector{Namespace: "prod", Kind: "Pod", Name: "api-0"}, ScopeInvalid, true},
		{"namespace kind without namespace", Selector{Kind: "namespace"}, ScopeInvalid, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.selector.Classify()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got scope %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got scope %v, want %v", got, tc.want)
			}
		})
	}
}
