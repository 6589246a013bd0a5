package prompt

// RegisterBuiltins loads the companion's default system prompts into r.
func RegisterBuiltins(r *Registry) {
	r.MustRegister(Spec{
		Name:        "kyma-expert",
		Version:     "v1",
		Description: "Kyma and Kubernetes domain expert for user conversations",
		System: `You are a Kyma expert. You assist users with Kyma and Kubernetes
related questions. Kyma is an opinionated set of Kubernetes-based modular
building blocks for developing and running enterprise-grade cloud-native
applications. Be accurate and concise; when an answer depends on cluster
state, say what you would need to check.`,
		Tags: []string{"conversation", "kyma"},
	})
	r.MustRegister(Spec{
		Name:        "supervisor",
		Version:     "v1",
		Description: "Supervisor that plans and routes sub-tasks to agents",
		System: `You are a supervisor coordinating specialist agents. Break the
user query into sub-tasks, route each to the right agent, and assemble a
single coherent answer.`,
		Tags: []string{"routing"},
	})
}
