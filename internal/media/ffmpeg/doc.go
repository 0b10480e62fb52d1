// Package ffmpeg renders episode video with the ffmpeg binary.
//
// Each scene becomes one segment: the narration clip plus either a still
// image with a slow zoompan push-in or a plain black background. Segments
// are encoded with libx264/aac and joined losslessly with the concat
// demuxer.
//
// Primary entry points:
//   - NewRenderer: bind a binary and output geometry
//   - Renderer.RenderSegment: render one scene segment
//   - Renderer.Concat: join segments into the final video
//
// A missing binary produces an instructive install hint rather than a bare
// exec error, since ffmpeg is the one external tool the pipeline requires.
package ffmpeg
