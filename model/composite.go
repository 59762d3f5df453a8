package model

import "sort"

// CompositeOp identifies the blending operator of a node. The set is closed;
// the decoder rejects identifiers outside it.
type CompositeOp string

// Common operators.
const (
	CompositeOpNormal      CompositeOp = "normal"
	CompositeOpMultiply    CompositeOp = "multiply"
	CompositeOpScreen      CompositeOp = "screen"
	CompositeOpOverlay     CompositeOp = "overlay"
	CompositeOpErase       CompositeOp = "erase"
	CompositeOpPassThrough CompositeOp = "pass through"
)

var compositeOps = map[CompositeOp]bool{}

func init() {
	for _, op := range []CompositeOp{
		"normal", "erase", "in", "out", "alphadarken", "destination-in",
		"destination-atop", "xor", "or", "and", "nand", "nor", "xnor",
		"implication", "not_implication", "converse", "not_converse", "plus",
		"minus", "add", "subtract", "inverse_subtract", "diff", "multiply",
		"divide", "arc_tangent", "geometric_mean", "additive_subtractive",
		"negation", "modulo", "modulo_continuous", "divisive_modulo",
		"divisive_modulo_continuous", "modulo_shift", "modulo_shift_continuous",
		"equivalence", "allanon", "parallel", "grain_merge", "grain_extract",
		"exclusion", "hard mix", "hard_mix_photoshop", "hard_mix_softer_photoshop",
		"overlay", "behind", "greater", "hard overlay", "interpolation",
		"interpolation 2x", "penumbra a", "penumbra b", "penumbra c", "penumbra d",
		"darken", "burn", "linear_burn", "gamma_dark", "shade_ifs_illusions",
		"fog_darken_ifs_illusions", "easy burn", "lighten", "dodge", "linear_dodge",
		"screen", "hard_light", "soft_light_ifs_illusions",
		"soft_light_pegtop_delphi", "soft_light", "soft_light_svg", "gamma_light",
		"gamma_illumination", "vivid_light", "flat_light", "linear light",
		"pin_light", "pnorm_a", "pnorm_b", "super_light", "tint_ifs_illusions",
		"fog_lighten_ifs_illusions", "easy dodge", "luminosity_sai", "hue", "color",
		"saturation", "inc_saturation", "dec_saturation", "luminize",
		"inc_luminosity", "dec_luminosity", "hue_hsv", "color_hsv",
		"saturation_hsv", "inc_saturation_hsv", "dec_saturation_hsv", "value",
		"inc_value", "dec_value", "hue_hsl", "color_hsl", "saturation_hsl",
		"inc_saturation_hsl", "dec_saturation_hsl", "lightness", "inc_lightness",
		"dec_lightness", "hue_hsi", "color_hsi", "saturation_hsi",
		"inc_saturation_hsi", "dec_saturation_hsi", "intensity", "inc_intensity",
		"dec_intensity", "copy", "copy_red", "copy_green", "copy_blue",
		"tangent_normalmap", "colorize", "bumpmap", "combine_normal", "clear",
		"dissolve", "displace", "nocomposition", "pass through", "darker color",
		"lighter color", "undefined", "reflect", "glow", "freeze", "heat",
		"glow_heat", "heat_glow", "reflect_freeze", "freeze_reflect",
		"heat_glow_freeze_reflect_hybrid", "lambert_lighting",
		"lambert_lighting_gamma2.2",
	} {
		compositeOps[op] = true
	}
}

// Known reports whether c is one of the defined operators.
func (c CompositeOp) Known() bool {
	return compositeOps[c]
}

// CompositeOps returns the identifiers of all defined operators, sorted.
func CompositeOps() []string {
	ops := make([]string, 0, len(compositeOps))
	for op := range compositeOps {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	return ops
}
