package manifest

import "encoding/json"

// BuiltinVersion is the format version of the bundled catalog.
const BuiltinVersion = "1.0"

// Builtin returns the bundled editor command catalog, used when no
// manifest path is configured. The catalog must always pass Validate;
// a test pins that.
func Builtin() *Manifest {
	return &Manifest{
		Version:  BuiltinVersion,
		Commands: append([]Command(nil), builtinCommands...),
	}
}

func obj(properties string) json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":` + properties + `}`)
}

var builtinCommands = []Command{
	// Scene graph edits. Free by policy: direct manipulation never
	// consumes generation tokens.
	{
		Name:          "create_entity",
		Description:   "Create an entity in the scene graph.",
		Category:      CategoryScene,
		Parameters:    obj(`{"name":{"type":"string"},"parent":{"type":"string"},"components":{"type":"array","items":{"type":"string"}}}`),
		TokenCost:     0,
		RequiredScope: "scene:write",
	},
	{
		Name:          "delete_entity",
		Description:   "Remove an entity and its children from the scene graph.",
		Category:      CategoryScene,
		Parameters:    obj(`{"entity":{"type":"string"}}`),
		TokenCost:     0,
		RequiredScope: "scene:write",
	},
	{
		Name:          "set_transform",
		Description:   "Set position, rotation and scale of an entity.",
		Category:      CategoryScene,
		Parameters:    obj(`{"entity":{"type":"string"},"position":{"type":"array","items":{"type":"number"}},"rotation":{"type":"array","items":{"type":"number"}},"scale":{"type":"array","items":{"type":"number"}}}`),
		TokenCost:     0,
		RequiredScope: "scene:write",
	},
	{
		Name:          "duplicate_entity",
		Description:   "Duplicate an entity subtree.",
		Category:      CategoryScene,
		Parameters:    obj(`{"entity":{"type":"string"},"count":{"type":"integer"}}`),
		TokenCost:     0,
		RequiredScope: "scene:write",
	},

	// Materials.
	{
		Name:          "assign_material",
		Description:   "Assign an existing material to an entity.",
		Category:      CategoryMaterials,
		Parameters:    obj(`{"entity":{"type":"string"},"material":{"type":"string"}}`),
		TokenCost:     0,
		RequiredScope: "materials:write",
	},
	{
		Name:          "generate_material",
		Description:   "Generate a PBR material from a text prompt.",
		Category:      CategoryMaterials,
		Parameters:    obj(`{"prompt":{"type":"string"},"style":{"type":"string"}}`),
		TokenCost:     10,
		RequiredScope: "materials:write",
	},

	// Lighting.
	{
		Name:          "set_light",
		Description:   "Update a light's color, intensity or range.",
		Category:      CategoryLighting,
		Parameters:    obj(`{"entity":{"type":"string"},"color":{"type":"string"},"intensity":{"type":"number"},"range":{"type":"number"}}`),
		TokenCost:     0,
		RequiredScope: "lighting:write",
	},
	{
		Name:          "generate_lighting_rig",
		Description:   "Generate a three-point lighting rig for the current scene.",
		Category:      CategoryLighting,
		Parameters:    obj(`{"mood":{"type":"string"},"target":{"type":"string"}}`),
		TokenCost:     8,
		RequiredScope: "lighting:write",
	},

	// Environment.
	{
		Name:          "set_environment",
		Description:   "Set fog, ambient light and sky parameters.",
		Category:      CategoryEnvironment,
		Parameters:    obj(`{"fog_density":{"type":"number"},"ambient_color":{"type":"string"},"sky":{"type":"string"}}`),
		TokenCost:     0,
		RequiredScope: "environment:write",
	},
	{
		Name:          "generate_skybox",
		Description:   "Generate a 360-degree skybox from a text prompt.",
		Category:      CategoryEnvironment,
		Parameters:    obj(`{"prompt":{"type":"string"}}`),
		TokenCost:     12,
		RequiredScope: "environment:write",
	},

	// Editor state.
	{
		Name:          "select_entities",
		Description:   "Replace the editor selection.",
		Category:      CategoryEditor,
		Parameters:    obj(`{"entities":{"type":"array","items":{"type":"string"}}}`),
		TokenCost:     0,
		RequiredScope: "editor:write",
	},
	{
		Name:          "set_gizmo_mode",
		Description:   "Switch the transform gizmo between translate, rotate and scale.",
		Category:      CategoryEditor,
		Parameters:    obj(`{"mode":{"type":"string","enum":["translate","rotate","scale"]}}`),
		TokenCost:     0,
		RequiredScope: "editor:write",
	},

	// Camera.
	{
		Name:          "set_camera",
		Description:   "Move the editor camera to a pose.",
		Category:      CategoryCamera,
		Parameters:    obj(`{"position":{"type":"array","items":{"type":"number"}},"look_at":{"type":"array","items":{"type":"number"}}}`),
		TokenCost:     0,
		RequiredScope: "camera:write",
	},
	{
		Name:          "frame_entity",
		Description:   "Frame an entity in the editor viewport.",
		Category:      CategoryCamera,
		Parameters:    obj(`{"entity":{"type":"string"}}`),
		TokenCost:     0,
		RequiredScope: "camera:write",
	},

	// History.
	{
		Name:          "undo",
		Description:   "Undo the last editor operation.",
		Category:      CategoryHistory,
		Parameters:    obj(`{"steps":{"type":"integer"}}`),
		TokenCost:     0,
		RequiredScope: "history:write",
	},
	{
		Name:          "redo",
		Description:   "Redo the last undone editor operation.",
		Category:      CategoryHistory,
		Parameters:    obj(`{"steps":{"type":"integer"}}`),
		TokenCost:     0,
		RequiredScope: "history:write",
	},

	// Queries.
	{
		Name:          "get_scene_graph",
		Description:   "Return the full scene graph.",
		Category:      CategoryQuery,
		Parameters:    obj(`{"depth":{"type":"integer"}}`),
		TokenCost:     0,
		RequiredScope: "query:read",
	},
	{
		Name:          "find_entities",
		Description:   "Find entities by name pattern or component type.",
		Category:      CategoryQuery,
		Parameters:    obj(`{"name":{"type":"string"},"component":{"type":"string"}}`),
		TokenCost:     0,
		RequiredScope: "query:read",
	},

	// Runtime.
	{
		Name:          "play",
		Description:   "Enter play mode.",
		Category:      CategoryRuntime,
		Parameters:    obj(`{}`),
		TokenCost:     0,
		RequiredScope: "runtime:write",
	},
	{
		Name:          "stop",
		Description:   "Exit play mode and restore the edit-time scene.",
		Category:      CategoryRuntime,
		Parameters:    obj(`{}`),
		TokenCost:     0,
		RequiredScope: "runtime:write",
	},

	// Assets.
	{
		Name:          "import_asset",
		Description:   "Import an asset from a URL into the project.",
		Category:      CategoryAsset,
		Parameters:    obj(`{"url":{"type":"string"},"name":{"type":"string"}}`),
		TokenCost:     2,
		RequiredScope: "asset:write",
	},
	{
		Name:          "generate_model",
		Description:   "Generate a 3D model from a text prompt.",
		Category:      CategoryAsset,
		Parameters:    obj(`{"prompt":{"type":"string"},"poly_budget":{"type":"integer"}}`),
		TokenCost:     20,
		RequiredScope: "asset:write",
	},

	// Scripting.
	{
		Name:          "attach_script",
		Description:   "Attach an existing script to an entity.",
		Category:      CategoryScripting,
		Parameters:    obj(`{"entity":{"type":"string"},"script":{"type":"string"}}`),
		TokenCost:     0,
		RequiredScope: "scripting:write",
	},
	{
		Name:          "generate_script",
		Description:   "Generate a behavior script from a text prompt.",
		Category:      CategoryScripting,
		Parameters:    obj(`{"prompt":{"type":"string"},"entity":{"type":"string"}}`),
		TokenCost:     15,
		RequiredScope: "scripting:write",
	},

	// Audio.
	{
		Name:          "set_audio_source",
		Description:   "Configure an entity's audio source.",
		Category:      CategoryAudio,
		Parameters:    obj(`{"entity":{"type":"string"},"clip":{"type":"string"},"volume":{"type":"number"},"loop":{"type":"boolean"}}`),
		TokenCost:     0,
		RequiredScope: "audio:write",
	},
	{
		Name:          "generate_ambience",
		Description:   "Generate an ambient audio loop from a text prompt.",
		Category:      CategoryAudio,
		Parameters:    obj(`{"prompt":{"type":"string"},"seconds":{"type":"integer"}}`),
		TokenCost:     10,
		RequiredScope: "audio:write",
	},

	// Particles.
	{
		Name:          "create_particle_system",
		Description:   "Create a particle system on an entity.",
		Category:      CategoryParticles,
		Parameters:    obj(`{"entity":{"type":"string"},"preset":{"type":"string"}}`),
		TokenCost:     0,
		RequiredScope: "particles:write",
	},
	{
		Name:          "generate_particle_effect",
		Description:   "Generate a particle effect from a text prompt.",
		Category:      CategoryParticles,
		Parameters:    obj(`{"prompt":{"type":"string"},"entity":{"type":"string"}}`),
		TokenCost:     8,
		RequiredScope: "particles:write",
	},

	// Export.
	{
		Name:          "export_scene",
		Description:   "Export the scene to a portable format.",
		Category:      CategoryExport,
		Parameters:    obj(`{"format":{"type":"string","enum":["gltf","glb","usdz"]}}`),
		TokenCost:     5,
		RequiredScope: "export:read",
	},

	// Rendering.
	{
		Name:          "render_preview",
		Description:   "Render a still preview of the current viewport.",
		Category:      CategoryRendering,
		Parameters:    obj(`{"width":{"type":"integer"},"height":{"type":"integer"}}`),
		TokenCost:     3,
		RequiredScope: "rendering:read",
	},
	{
		Name:          "set_render_quality",
		Description:   "Set the viewport render quality tier.",
		Category:      CategoryRendering,
		Parameters:    obj(`{"quality":{"type":"string","enum":["draft","balanced","high"]}}`),
		TokenCost:     0,
		RequiredScope: "rendering:write",
	},
}
