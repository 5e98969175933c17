package gtiff

// A tiff file holds one Image File Directory (IFD) per image; we only ever
// read or write the first. Each IFD entry is a tag, a data type, a count,
// and either the value itself or an offset to it, if it doesn't fit in the
// entry.

const(
	leHeader  = "II\x2A\x00" // classic, little-endian
	leBigHdr  = "II\x2B\x00" // BigTIFF, little-endian

	classicEntryLen = 12
	bigEntryLen     = 20
)

// Data types
const(
	dtByte    = 1
	dtASCII   = 2
	dtShort   = 3
	dtLong    = 4
	dtRational = 5
	dtSByte   = 6
	dtUndef   = 7
	dtSShort  = 8
	dtSLong   = 9
	dtSRational = 10
	dtFloat   = 11
	dtDouble  = 12
	dtIFD     = 13
	dtLong8   = 16
	dtSLong8  = 17
	dtIFD8    = 18
)

var dtLengths = map[uint16]int{
	dtByte: 1, dtASCII: 1, dtShort: 2, dtLong: 4, dtSByte: 1, dtUndef: 1, dtSShort: 2, dtSLong: 4,
	dtRational: 8, dtSRational: 8, dtFloat: 4, dtDouble: 8, dtIFD: 4, dtLong8: 8, dtSLong8: 8, dtIFD8: 8,
}

// Tags
const(
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tCompression               = 259
	tPhotometricInterpretation = 262
	tStripOffsets              = 273
	tSamplesPerPixel           = 277
	tRowsPerStrip              = 278
	tStripByteCounts           = 279
	tPlanarConfiguration       = 284
	tSoftware                  = 305
	tPredictor                 = 317
	tTileWidth                 = 322
	tTileLength                = 323
	tTileOffsets               = 324
	tTileByteCounts            = 325
	tSampleFormat              = 339
	tJPEGTables                = 347
	tYCbCrSubSampling          = 530

	// GeoTIFF, and GDAL's private tags
	tModelPixelScale           = 33550
	tModelTiepoint             = 33922
	tModelTransformation       = 34264
	tGeoKeyDirectory           = 34735
	tGeoDoubleParams           = 34736
	tGeoAsciiParams            = 34737
	tGDALNoData                = 42113
)

// Compression codes
const(
	cNone        = 1
	cLZW         = 5
	cJPEG        = 7
	cDeflate     = 8
	cPackBits    = 32773
	cDeflateOld  = 32946
	cZstd        = 50000
)

// Photometric interpretations
const(
	pMinIsBlack = 1
	pRGB        = 2
	pYCbCr      = 6
)

const(
	prNone        = 1
	prHorizontal  = 2
	prFloat       = 3
)

// Planar configurations
const(
	pcChunky = 1
	pcPlanar = 2
)

// Sample formats
const(
	sfUint  = 1
	sfInt   = 2
	sfFloat = 3
)

const software = "s2truecolor"
