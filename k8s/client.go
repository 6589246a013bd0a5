// Package k8s defines the read-only cluster access the companion needs. The
// concrete client (kubeconfig handling, API machinery) is supplied by the
// embedding service; this package is the contract plus the resource selector
// the HTTP surface accepts.
package k8s

import (
	"context"
	"fmt"
	"strings"
)

// Resource is an untyped cluster object as returned by the Kubernetes API.
type Resource = map[string]any

type Client interface {
	// ListNotRunningPods returns pods not in Running or Succeeded phase.
	// An empty namespace means all namespaces.
	ListNotRunningPods(ctx context.Context, namespace string) ([]Resource, error)
	// ListNodeMetrics returns per-node resource usage.
	ListNodeMetrics(ctx context.Context) ([]Resource, error)
	// ListWarningEvents returns events of type Warning.
	ListWarningEvents(ctx context.Context, namespace string) ([]Resource, error)
	// DescribeResource fetches a single resource. Cluster-scoped resources
	// pass an empty namespace.
	DescribeResource(ctx context.Context, apiVersion, kind, name, namespace string) (Resource, error)
	// ListEventsForResource returns the events attached to one resource.
	ListEventsForResource(ctx context.Context, kind, name, namespace string) ([]Resource, error)
}

// Selector names what part of the cluster a request is about: the whole
// cluster, one namespace, or one resource.
type Selector struct {
	Namespace  string `json:"namespace,omitempty"`
	Kind       string `json:"resourceKind,omitempty"`
	Name       string `json:"resourceName,omitempty"`
	APIVersion string `json:"resourceApiVersion,omitempty"`
}

// Scope classifies a Selector.
type Scope int

const (
	ScopeInvalid Scope = iota
	ScopeCluster
	ScopeNamespace
	ScopeResource
)

// Classify decides which overview a selector asks for. Mirrors the request
// classification the conversational API performs before fetching context.
func (s Selector) Classify() (Scope, error) {
	kind := strings.ToLower(strings.TrimSpace(s.Kind))
	namespace := strings.TrimSpace(s.Namespace)
	switch {
	case namespace == "" && kind == "cluster":
		return ScopeCluster, nil
	case namespace != "" && kind == "namespace":
		return ScopeNamespace, nil
	case kind != "" && strings.TrimSpace(s.APIVersion) != "":
		return ScopeResource, nil
	default:
		return ScopeInvalid, fmt.Errorf("invalid resource selector: kind=%q namespace=%q apiVersion=%q", s.Kind, s.Namespace, s.APIVersion)
	}
}
