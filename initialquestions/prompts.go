package initialquestions

const initialQuestionsTemplate = `You are a Kubernetes and Kyma expert assisting a cluster operator.

Below is the current state of the part of the cluster the user is looking at.
Suggest questions the user is most likely to ask next about this state. Every
question must be answerable from the context. Write one question per line,
with no numbering and no extra commentary.

Cluster context:
{{context}}`
