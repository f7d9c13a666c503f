package buildinfo

const Graffiti = "       _       _ \n _ __ | | ____| |\n| '_ \\| |/ / _` |\n| |_) |   < (_| |\n| .__/|_|\\_\\__,_|\n|_|              \n\n"

var (
	BuildTag string = "v0.0.0"
	Name     string = "PKD"
	Time     string = ""
)

type buildinfo struct{}

func (buildinfo) Tag() string {
	return BuildTag
}

func (buildinfo) Name() string {
	return Name
}

func (buildinfo) Time() string {
	return Time
}

var Info buildinfo
