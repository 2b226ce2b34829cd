package site

// StageName identifies a build stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StagePrepareOutput  StageName = "prepare_output"
	StageResolvePlugins StageName = "resolve_plugins"
	StageDiscover       StageName = "discover"
	StageRender         StageName = "render"
	StagePassthrough    StageName = "passthrough"
	StageWrite          StageName = "write"
	StageLinkCheck      StageName = "link_check"
)

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

func defaultStages() []StageDef {
	return []StageDef{
		{StagePrepareOutput, stagePrepareOutput},
		{StageResolvePlugins, stageResolvePlugins},
		{StageDiscover, stageDiscover},
		{StageRender, stageRender},
		{StagePassthrough, stagePassthrough},
		{StageWrite, stageWrite},
		{StageLinkCheck, stageLinkCheck},
	}
}
