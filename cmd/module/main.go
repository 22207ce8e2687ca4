package main

import (
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"

	"realsensecontrol"
	_ "realsensecontrol/sdk/librealsense"
	_ "realsensecontrol/sdk/sim"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: camera.API, Model: realsensecontrol.RealsenseCamera},
	)
}
