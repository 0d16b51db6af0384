// Package webclient builds the HTTP clients used for page fetches and
// asset downloads.
//
// All outbound traffic goes through clients created here so that three
// policies hold everywhere:
//
//   - the configured User-Agent and per-site credentials (cookie, custom
//     headers from the .siteclone file) are injected into every request,
//     including redirects
//   - redirect chains are capped to break redirect loops
//   - response bodies are read through a hard size cap
//
// Target validation also lives here: only http/https URLs are accepted,
// and loopback or private-network hosts are refused unless explicitly
// allowed, so a hostile page cannot steer the cloner at internal services.
package webclient
