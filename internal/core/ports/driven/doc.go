// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EntityStore: Document, CVE and threat actor persistence
//   - TextExtractor: PDF text extraction
//   - PayloadSpool: Temporary staging of uploads
//
// # Optional Interfaces
//
// These can be nil - ingestion is disabled but search keeps working:
//
//   - CVEExtractor / ActorExtractor: Structured extraction agents
//   - LLMService: Language model backing the agents
//   - PromptStore: Customisable agent prompts
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
