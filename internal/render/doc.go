// Package render assembles episode video from the media manifest.
//
// Each manifest scene becomes one ffmpeg segment: narration audio against
// its cover image with a slow zoom push-in, or a plain background when the
// scene has no usable image. Segments are concatenated losslessly in scene
// order; legacy single-clip manifests skip concatenation and probe the
// narration for the episode duration. The final file is stored as a video
// asset and the episode moves to ready_for_review with a preview URL.
package render
