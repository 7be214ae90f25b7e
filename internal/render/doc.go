// Package render defines the single-track render contract consumed by the
// export core and ships the engine-backed implementation.
//
// A Renderer performs exactly one offline render job: it is constructed from
// immutable Settings and an output path, started asynchronously, and signals
// completion exactly once through OnFinished, success or failure. Engine
// drives an external render engine binary, streaming structured progress from
// its stdout, so the mixing and encoding work stays out of process.
//
// The format table (Formats, Format.Extension, FormatFromExtension) is the
// pure lookup the rest of the system uses to name output files.
package render
