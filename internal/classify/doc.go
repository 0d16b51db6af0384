// Package classify assigns asset types to discovered resources.
//
// Classification is a pure function over three inputs: the declared
// Content-Type, a bounded prefix of the response body, and the URL path.
// The precedence is fixed:
//
//  1. An explicit, non-generic content type wins.
//  2. The URL extension is the fallback when the content type is absent
//     or generic (application/octet-stream, text/plain for binaries).
//  3. Byte-signature sniffing is used only to split texture containers
//     from generic images and to catch 3D-model containers served with
//     a generic content type.
//
// Design decision: We keep sniffing last and narrow rather than running
// it on everything because:
//  1. Servers that declare a real content type are almost always right
//  2. Signature tables drift; extension maps are cheap and stable
//  3. The only formats the web routinely mislabels are the GPU/3D ones
//
// Classification never fails: anything unrecognized maps to "other".
package classify
