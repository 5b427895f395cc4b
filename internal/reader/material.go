package reader

import "github.com/Faultbox/geomcache/internal/render"

// Default material plugin names.
const (
	DefaultBRDFName     = "diffuse"
	DefaultMaterialName = "diffuseMtl"
)

// createDefaultMaterial builds a plain red diffuse material.
func createDefaultMaterial(arena *render.Arena) (render.Plugin, error) {
	brdf, err := arena.New(render.TypeBRDFDiffuse, DefaultBRDFName)
	if err != nil {
		return nil, err
	}
	brdf.SetParameter(render.NewColor("color", 1, 0, 0))

	mtl, err := arena.New(render.TypeMtlSingleBRDF, DefaultMaterialName)
	if err != nil {
		return nil, err
	}
	mtl.SetParameter(render.NewPluginRef("brdf", brdf))
	return mtl, nil
}
