// Package rag holds the data model shared by the retrieval and answer
// synthesis pipeline.
//
// A Chunk is produced once at ingestion time and never mutated. Every
// retrieval call derives fresh AnnotatedChunk values from the chunks the
// similarity index returns, bounds them to a token budget and hands the
// resulting RetrievalResult to the synthesizer, which produces an
// AnswerResult.
package rag
