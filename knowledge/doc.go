// Package knowledge implements the knowledge base consumed by the QA and
// discovery pipelines: embedding and storing chunks, similarity queries,
// uniform sampling, and density clustering of sampled documents.
package knowledge
