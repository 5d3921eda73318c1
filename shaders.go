package ember

// Built-in WGSL programs. All programs share the engine's shader
// interface: vertex attributes at locations 0..2, instance attributes at
// locations 8..11, the material texture and sampler at group 0, and the
// frame uniform block at group 1.

const frameUniformsWGSL = `
struct FrameUniforms {
    view_proj: mat4x4<f32>,
    camera_pos: vec4<f32>,
    camera_dir: vec4<f32>,
    screen_time: vec4<f32>,
    sun_color: vec4<f32>,
    fog_grade: vec4<f32>,
}

@group(0) @binding(0) var material_tex: texture_2d<f32>;
@group(0) @binding(1) var material_smp: sampler;
@group(1) @binding(0) var<uniform> frame: FrameUniforms;
`

// skyShaderWGSL renders a full-screen gradient blended toward the sun
// direction. Drawn with the unit quad, no depth.
const skyShaderWGSL = frameUniformsWGSL + `
struct SkyOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec3<f32>, @location(1) uv: vec2<f32>, @location(2) normal: vec3<f32>) -> SkyOutput {
    var output: SkyOutput;
    output.position = vec4<f32>(pos.xy, 1.0, 1.0);
    output.uv = uv;
    return output;
}

@fragment
fn fs_main(input: SkyOutput) -> @location(0) vec4<f32> {
    let horizon = vec3<f32>(0.55, 0.65, 0.80);
    let zenith = vec3<f32>(0.15, 0.30, 0.60);
    let sky = mix(horizon, zenith, input.uv.y);
    let sun = frame.sun_color.rgb * frame.sun_color.a * 0.15;
    return vec4<f32>(sky + sun, 1.0);
}
`

// sceneShaderWGSL is the default instanced program for every world
// stage: each instance is placed by position, uniform scale, and a
// rotation about the view axis, then tinted by the instance color.
const sceneShaderWGSL = frameUniformsWGSL + `
struct SceneOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
    @location(1) color: vec4<f32>,
    @location(2) shade: f32,
}

@vertex
fn vs_main(
    @location(0) pos: vec3<f32>,
    @location(1) uv: vec2<f32>,
    @location(2) normal: vec3<f32>,
    @location(8) inst_pos_scale: vec4<f32>,
    @location(9) inst_color: vec4<f32>,
    @location(10) inst_custom0: vec4<f32>,
    @location(11) inst_custom1: vec4<f32>,
) -> SceneOutput {
    let angle = inst_custom1.w;
    let c = cos(angle);
    let s = sin(angle);
    let rotated = vec3<f32>(
        pos.x * c - pos.y * s,
        pos.x * s + pos.y * c,
        pos.z,
    );
    let world = rotated * inst_pos_scale.w + inst_pos_scale.xyz;

    let light = normalize(vec3<f32>(0.4, 1.0, 0.2));
    let shade = max(dot(normal, light), 0.0) * 0.6 + 0.4;

    var output: SceneOutput;
    output.position = frame.view_proj * vec4<f32>(world, 1.0);
    output.uv = uv;
    output.color = inst_color;
    output.shade = shade;
    return output;
}

@fragment
fn fs_main(input: SceneOutput) -> @location(0) vec4<f32> {
    let texel = textureSample(material_tex, material_smp, input.uv);
    return vec4<f32>(texel.rgb * input.color.rgb * input.shade, texel.a * input.color.a);
}
`

// postProcessShaderWGSL resolves the offscreen scene to the surface,
// applying the mode selected in fog_grade.z: 0 passthrough, 1
// desaturate, 2 scan lines, 3 warp.
const postProcessShaderWGSL = frameUniformsWGSL + `
struct PostOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) pos: vec3<f32>, @location(1) uv: vec2<f32>, @location(2) normal: vec3<f32>) -> PostOutput {
    var output: PostOutput;
    output.position = vec4<f32>(pos.xy, 0.0, 1.0);
    output.uv = uv;
    return output;
}

@fragment
fn fs_main(input: PostOutput) -> @location(0) vec4<f32> {
    let mode = frame.fog_grade.z;
    let time = frame.screen_time.w;

    var uv = input.uv;
    if (mode > 2.5) {
        uv.x = uv.x + sin(uv.y * 20.0 + time * 2.0) * 0.01;
        uv.y = uv.y + sin(uv.x * 20.0 + time * 2.0) * 0.01;
    }

    var color = textureSample(material_tex, material_smp, uv).rgb;
    if (mode > 0.5 && mode < 1.5) {
        let gray = dot(color, vec3<f32>(0.299, 0.587, 0.114));
        color = vec3<f32>(gray, gray, gray);
    }
    if (mode > 1.5 && mode < 2.5) {
        let line = sin(uv.y * frame.screen_time.y * 3.14159);
        color = color * (0.85 + 0.15 * line * line);
    }
    return vec4<f32>(color, 1.0);
}
`
