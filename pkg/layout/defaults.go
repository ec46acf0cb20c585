package layout

func imageAt(x, y float64) Placement {
	return Placement{Position: Position{X: x, Y: y}, Size: Size{Width: 130, Height: 130}}
}

func textAt(x, y, fontSize float64) Placement {
	return Placement{Position: Position{X: x, Y: y}, Size: Size{FontSize: fontSize}}
}

// defaults is the documented starting layout. Text rows line up with the
// contrast analyzer's sample points (15%, 22%, 80%, 90%).
var defaults = [Count]Placement{
	Image0:      imageAt(35, 40),
	Image1:      imageAt(65, 40),
	Image2:      imageAt(35, 60),
	Image3:      imageAt(65, 60),
	Title:       textAt(50, 15, 60),
	Description: textAt(50, 22, 25),
	LinkCallout: textAt(50, 70, 20),
	Price:       textAt(50, 80, 30),
	Beneficiary: textAt(50, 90, 30),
}

// Default returns the default placement of e.
func Default(e Element) Placement {
	return defaults[e]
}
